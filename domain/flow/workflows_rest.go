package flow

import (
	"docflow/bizerror"
	"docflow/session"
	"io/ioutil"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathWorkflows = "/v1/workflows"
)

type MatchResult struct {
	Candidates []types.ID `json:"candidates"`
	Selected   types.ID   `json:"selected"`
}

func RegisterWorkflowsRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathWorkflows, middleWares...)
	g.POST("", handleDefineWorkflow)
	g.POST("/import", handleImportWorkflow)
	g.POST("/matches", handleMatchWorkflows)
	g.GET("", handleQueryWorkflows)
	g.GET("/:id", handleDetailWorkflow)
	g.PUT("/:id/superseded", handleSupersedeWorkflow)
}

func handleDefineWorkflow(c *gin.Context) {
	creation := WorkflowCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := DefineWorkflowFunc(&creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func handleImportWorkflow(c *gin.Context) {
	data, err := ioutil.ReadAll(c.Request.Body)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := ImportDefinitionFunc(data, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, detail)
}

func handleMatchWorkflows(c *gin.Context) {
	attrs := DocumentAttributes{}
	if err := c.ShouldBindBodyWith(&attrs, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	candidates, err := MatchTriggersFunc(attrs, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	selected, _ := SelectDefinition(candidates)
	c.JSON(http.StatusOK, &MatchResult{Candidates: candidates, Selected: selected})
}

func handleQueryWorkflows(c *gin.Context) {
	q := DefinitionQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	definitions, err := QueryDefinitionsFunc(&q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, definitions)
}

func handleDetailWorkflow(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	detail, err := GetDefinitionFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, detail)
}

func handleSupersedeWorkflow(c *gin.Context) {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := SupersedeDefinitionFunc(id, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
