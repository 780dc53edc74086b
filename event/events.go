package event

import (
	"docflow/idgen"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
)

// CreateEvent persists an audit event on db, usually the caller's transaction.
// Handlers are not invoked here, call InvokeHandlersFunc after commit.
func CreateEvent(entity string, entityID types.ID, action string, details Details,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		ID: idgen.NextID(idWorker),
		Event: Event{
			Entity:   entity,
			EntityID: entityID,
			Action:   action,
			Details:  details,

			ActorID:   identity.ID,
			ActorName: identity.Name,
		},
		Synced:    false,
		Timestamp: timestamp,
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}

// Dispatch hands committed events to the registered handlers in order.
func Dispatch(records []*EventRecord) {
	for _, r := range records {
		InvokeHandlersFunc(r)
	}
}
