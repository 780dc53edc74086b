package approval

import (
	"docflow/bizerror"
	"docflow/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathInstances    = "/v1/instances"
	PathPendingSteps = "/v1/me/pending-steps"
)

// Service is the engine surface exposed over http.
type Service interface {
	StartInstance(documentID, workflowID types.ID, s *session.Session) (*InstanceDetail, error)
	StartForDocument(documentID types.ID, s *session.Session) (*InstanceDetail, error)
	DetailInstance(instanceID types.ID, s *session.Session) (*InstanceDetail, error)
	ActiveInstanceOfDocument(documentID types.ID, s *session.Session) (*InstanceDetail, error)
	RecordDecision(instanceID, stepID types.ID, req *DecisionRequest, s *session.Session) (*InstanceDetail, error)
	BeginStep(instanceID, stepID types.ID, s *session.Session) (*StepExecution, error)
	AssignStep(instanceID, stepID, userID types.ID, s *session.Session) (*InstanceDetail, error)
	QueryPendingSteps(userID types.ID, s *session.Session) ([]PendingStep, error)
}

type instanceHandler struct {
	service Service
}

type activeInstanceQuery struct {
	DocumentID types.ID `form:"documentId" binding:"required"`
}

func RegisterInstancesRestAPI(r *gin.Engine, service Service, middleWares ...gin.HandlerFunc) {
	h := &instanceHandler{service: service}
	g := r.Group(PathInstances, middleWares...)
	g.POST("", h.handleStart)
	g.POST("/auto", h.handleAutoStart)
	g.GET("", h.handleActiveOfDocument)
	g.GET("/:id", h.handleDetail)
	g.POST("/:id/steps/:stepId/decisions", h.handleDecision)
	g.POST("/:id/steps/:stepId/begin", h.handleBegin)
	g.PUT("/:id/steps/:stepId/assignee", h.handleAssign)

	r.GET(PathPendingSteps, append(middleWares, h.handlePendingSteps)...)
}

func (h *instanceHandler) handleStart(c *gin.Context) {
	creation := InstanceCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.service.StartInstance(creation.DocumentID, creation.WorkflowID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *instanceHandler) handleAutoStart(c *gin.Context) {
	creation := AutoInstanceCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.service.StartForDocument(creation.DocumentID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *instanceHandler) handleActiveOfDocument(c *gin.Context) {
	q := activeInstanceQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.service.ActiveInstanceOfDocument(q.DocumentID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleDetail(c *gin.Context) {
	detail, err := h.service.DetailInstance(pathID(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleDecision(c *gin.Context) {
	instanceID, stepID := pathID(c, "id"), pathID(c, "stepId")
	req := DecisionRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.service.RecordDecision(instanceID, stepID, &req, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handleBegin(c *gin.Context) {
	step, err := h.service.BeginStep(pathID(c, "id"), pathID(c, "stepId"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, step)
}

func (h *instanceHandler) handleAssign(c *gin.Context) {
	instanceID, stepID := pathID(c, "id"), pathID(c, "stepId")
	req := AssignmentRequest{}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := h.service.AssignStep(instanceID, stepID, req.UserID, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func (h *instanceHandler) handlePendingSteps(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	if s.Identity.ID.IsZero() {
		panic(bizerror.ErrUnauthenticated)
	}
	steps, err := h.service.QueryPendingSteps(s.Identity.ID, s)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, steps)
}

func pathID(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
