package event

import (
	"docflow/bizerror"
	"docflow/persistence"
	"docflow/session"
	"net/http"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"
)

var (
	PathAudit = "/v1/audit"

	auditSyncLimiter = rate.NewLimiter(rate.Every(10*time.Second), 1)

	QueryAuditTrailFunc = QueryAuditTrail
)

type AuditQuery struct {
	Entity   string   `form:"entity" binding:"required"`
	EntityID types.ID `form:"entityId" binding:"required"`
}

func QueryAuditTrail(q AuditQuery, s *session.Session) ([]EventRecord, error) {
	return QueryEvents(persistence.ActiveDataSourceManager.GormDB(s.Context), q.Entity, q.EntityID)
}

func RegisterAuditRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathAudit, middleWares...)
	g.GET("/events", handleQueryAuditTrail)
	g.POST("/sync", handleAuditSync)
}

func handleQueryAuditTrail(c *gin.Context) {
	q := AuditQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	records, err := QueryAuditTrailFunc(q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}

func handleAuditSync(c *gin.Context) {
	if !auditSyncLimiter.Allow() {
		panic(bizerror.ErrTooManyRequests)
	}
	synced, err := SyncAuditEventsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"synced": synced})
}
