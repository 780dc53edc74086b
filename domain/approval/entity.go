package approval

import (
	"docflow/bizerror"
	"docflow/domain/document"
	"docflow/domain/state"

	"github.com/fundwit/go-commons/types"
)

type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "active"
	InstanceCompleted InstanceStatus = "completed"
	InstanceCancelled InstanceStatus = "cancelled"
)

type Result string

const (
	ResultApproved Result = "approved"
	ResultRejected Result = "rejected"
	ResultSigned   Result = "signed"
	ResultReviewed Result = "reviewed"
	ResultVerified Result = "verified"
)

type Instance struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentID types.ID `json:"documentId" gorm:"index:idx_instance_document" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	CurrentOrder int            `json:"currentOrder"`
	Status       InstanceStatus `json:"status"`
	Revision     int            `json:"-" gorm:"not null;default:0"`

	StarterID    types.ID        `json:"starterId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StartTime    types.Timestamp `json:"startTime" sql:"type:DATETIME(6) NOT NULL"`
	CompleteTime types.Timestamp `json:"completeTime" sql:"type:DATETIME(6)"`
}

func (i *Instance) TableName() string {
	return "workflow_instances"
}

// StepExecution is the runtime copy of a workflow step inside one instance.
// Position groups the steps that are active together: a lone step, or a whole parallel group.
type StepExecution struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	InstanceID types.ID `json:"instanceId" gorm:"index:idx_execution_instance" sql:"type:BIGINT UNSIGNED NOT NULL"`

	StepOrder     int    `json:"stepOrder"`
	Position      int    `json:"position"`
	StepName      string `json:"stepName"`
	Kind          string `json:"kind"`
	Required      bool   `json:"required"`
	ParallelGroup int    `json:"parallelGroup"`
	SLAHours      int    `json:"slaHours"`

	AssigneeKind  string   `json:"assigneeKind"`
	AssigneeValue string   `json:"assigneeValue"`
	RequiredRole  string   `json:"requiredRole"`
	AssigneeID    types.ID `json:"assigneeId" gorm:"index:idx_execution_assignee" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Status    state.Status `json:"status"`
	Result    Result       `json:"result"`
	DeciderID types.ID     `json:"deciderId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Comment   string       `json:"comment" sql:"type:TEXT"`

	ActivateTime types.Timestamp `json:"activateTime" sql:"type:DATETIME(6)"`
	DecideTime   types.Timestamp `json:"decideTime" sql:"type:DATETIME(6)"`
}

func (e *StepExecution) TableName() string {
	return "step_executions"
}

func (e *StepExecution) unresolved() bool {
	return e.AssigneeID == 0
}

type InstanceDetail struct {
	Instance
	Steps          []StepExecution               `json:"steps"`
	DocumentStatus document.Status               `json:"documentStatus"`
	Stalled        bool                          `json:"stalled"`
	Warnings       []*bizerror.ErrStepUnresolved `json:"warnings"`
}

type InstanceCreation struct {
	DocumentID types.ID `json:"documentId" binding:"required"`
	WorkflowID types.ID `json:"workflowId" binding:"required"`
}

type AutoInstanceCreation struct {
	DocumentID types.ID `json:"documentId" binding:"required"`
}

type DecisionRequest struct {
	Result  Result `json:"result" binding:"required,oneof=approved rejected signed reviewed verified"`
	Comment string `json:"comment"`
}

type AssignmentRequest struct {
	UserID types.ID `json:"userId" binding:"required"`
}

// PendingStep is an entry of the "my approvals" list.
type PendingStep struct {
	StepExecution
	DocumentID types.ID `json:"documentId"`
	WorkflowID types.ID `json:"workflowId"`
}
