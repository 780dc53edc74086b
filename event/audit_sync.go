package event

import (
	"context"
	"docflow/client/es"
	"docflow/persistence"
	"docflow/session"
	"fmt"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const IndexHandlerName = "auditIndexer"

var (
	AuditIndexName = "docflow-audit"
	SyncBatchSize  = 500

	SyncAuditEventsFunc = SyncAuditEvents
)

// SyncAuditEvents pushes every unsynced event to the audit index and flags it synced.
// Events indexed before a failure stay flagged, the rest are retried on the next run.
func SyncAuditEvents(s *session.Session) (int, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	total := 0
	for {
		records, err := LoadUnsyncedEvents(db, SyncBatchSize)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			break
		}

		ids := []types.ID{}
		var indexErr error
		for _, r := range records {
			if err := es.IndexFunc(AuditIndexName, r.ID, r, s); err != nil {
				indexErr = fmt.Errorf("index audit event %d: %w", r.ID, err)
				break
			}
			ids = append(ids, r.ID)
		}
		if err := MarkSynced(db, ids); err != nil {
			return total, err
		}
		total += len(ids)
		if indexErr != nil {
			logrus.WithField("synced", total).Warn("audit sync interrupted: ", indexErr)
			return total, indexErr
		}
		if len(records) < SyncBatchSize {
			break
		}
	}
	logrus.WithField("synced", total).Info("audit events synchronized")
	return total, nil
}

// IndexHandler indexes each committed event right away, failures are left for SyncAuditEvents.
func IndexHandler(e *EventRecord) *EventHandleResult {
	s := session.NewSession(context.Background(), session.Identity{ID: e.ActorID, Name: e.ActorName})
	if err := es.IndexFunc(AuditIndexName, e.ID, e, s); err != nil {
		return &EventHandleResult{Message: fmt.Sprintf("index audit event %d, %v", e.ID, err), HandlerIdentifier: IndexHandlerName}
	}
	if err := MarkSynced(persistence.ActiveDataSourceManager.GormDB(s.Context), []types.ID{e.ID}); err != nil {
		return &EventHandleResult{Message: fmt.Sprintf("mark audit event %d synced, %v", e.ID, err), HandlerIdentifier: IndexHandlerName}
	}
	return &EventHandleResult{Success: true, HandlerIdentifier: IndexHandlerName}
}
