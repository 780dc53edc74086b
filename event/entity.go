package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	EntityDocument = "DOCUMENT"
	EntityWorkflow = "WORKFLOW"
	EntityInstance = "INSTANCE"
	EntityStep     = "STEP"
)

const (
	ActionDocumentCreated    = "document created"
	ActionVersionAdded       = "version added"
	ActionWorkflowDefined    = "workflow defined"
	ActionWorkflowSuperseded = "workflow superseded"
	ActionWorkflowStarted    = "workflow started"
	ActionWorkflowCancelled  = "workflow cancelled"
	ActionStepDecided        = "step decided"
	ActionStepBegun          = "step begun"
	ActionStepAssigned       = "step assigned"
	ActionWorkflowCompleted  = "workflow completed"
	ActionWorkflowRejected   = "workflow rejected"
)

type Event struct {
	Entity   string   `json:"entity"`
	EntityID types.ID `json:"entityId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Action   string   `json:"action"`

	ActorID   types.ID `json:"actorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ActorName string   `json:"actorName"`

	Details Details `json:"details" sql:"type:TEXT"`
}

type EventRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Event

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
	Synced    bool            `json:"synced"`
}

func (r *EventRecord) TableName() string {
	return "events"
}

// Details is the freeform payload of an audit event.
type Details map[string]string

func (t Details) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *Details) Scan(v interface{}) error {
	if v == nil {
		*c = nil
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), c)
}
