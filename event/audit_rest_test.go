package event

import (
	"docflow/bizerror"
	"docflow/session"
	"docflow/testinfra"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"
)

func TestAuditRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	RegisterAuditRestAPI(router)

	originSync := SyncAuditEventsFunc
	originQuery := QueryAuditTrailFunc
	defer func() {
		SyncAuditEventsFunc = originSync
		QueryAuditTrailFunc = originQuery
	}()

	t.Run("should rate limit audit sync requests", func(t *testing.T) {
		auditSyncLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		SyncAuditEventsFunc = func(s *session.Session) (int, error) {
			return 12, nil
		}

		req := httptest.NewRequest(http.MethodPost, PathAudit+"/sync", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"synced":12}`))

		req = httptest.NewRequest(http.MethodPost, PathAudit+"/sync", nil)
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusTooManyRequests))
	})

	t.Run("should return sync errors", func(t *testing.T) {
		auditSyncLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		SyncAuditEventsFunc = func(s *session.Session) (int, error) {
			return 0, errors.New("es down")
		}
		req := httptest.NewRequest(http.MethodPost, PathAudit+"/sync", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"es down","data":null}`))
	})

	t.Run("should query audit trail of an entity", func(t *testing.T) {
		var q1 AuditQuery
		QueryAuditTrailFunc = func(q AuditQuery, s *session.Session) ([]EventRecord, error) {
			q1 = q
			return []EventRecord{{ID: 5, Event: Event{Entity: EntityInstance, EntityID: 100, Action: ActionWorkflowStarted}}}, nil
		}
		req := httptest.NewRequest(http.MethodGet, PathAudit+"/events?entity=INSTANCE&entityId=100", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(`"action":"workflow started"`))
		Expect(q1).To(Equal(AuditQuery{Entity: EntityInstance, EntityID: 100}))

		req = httptest.NewRequest(http.MethodGet, PathAudit+"/events", nil)
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
	})
}
