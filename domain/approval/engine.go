package approval

import (
	"docflow/account"
	"docflow/authority"
	"docflow/bizerror"
	"docflow/config"
	"docflow/domain/document"
	"docflow/domain/flow"
	"docflow/domain/state"
	"docflow/event"
	"docflow/idgen"
	"docflow/persistence"
	"docflow/session"
	"errors"
	"fmt"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	unresolvedStatuses = state.StepLifecycle.Sources(state.Skipped)
	decidableStatuses  = state.StepLifecycle.Sources(state.Completed)
)

// DocumentStore is the document side of the engine, calls run on the engine's transaction.
type DocumentStore interface {
	GetDocumentAttributes(db *gorm.DB, id types.ID) (*document.Attributes, error)
	SetDocumentStatus(db *gorm.DB, id types.ID, status document.Status) error
}

// Engine drives approval instances: it instantiates workflows against documents and applies decisions.
// Every state change runs in one transaction, audit events are dispatched after commit.
type Engine struct {
	resolver  *assigneeResolver
	documents DocumentStore
}

func NewEngine(catalog *config.Catalog, directory account.Directory, documents DocumentStore) *Engine {
	return &Engine{
		resolver: &assigneeResolver{
			catalog:   catalog,
			ranking:   authority.NewRanking(catalog),
			directory: directory,
		},
		documents: documents,
	}
}

// StartInstance instantiates the workflow for the document, cancelling any active instance of the document.
// Steps whose assignee cannot be resolved are reported as warnings and stay waiting.
func (e *Engine) StartInstance(documentID, workflowID types.ID, s *session.Session) (*InstanceDetail, error) {
	var detail *InstanceDetail
	var events []*event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		detail, events, err = e.startInstance(tx, documentID, workflowID, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(events)
	return detail, nil
}

// StartForDocument starts the earliest created active workflow whose trigger matches the document.
func (e *Engine) StartForDocument(documentID types.ID, s *session.Session) (*InstanceDetail, error) {
	var detail *InstanceDetail
	var events []*event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		attrs, err := e.documents.GetDocumentAttributes(tx, documentID)
		if err != nil {
			return err
		}
		definitions, err := flow.LoadActiveDefinitions(tx)
		if err != nil {
			return err
		}
		candidates := flow.ResolveTriggers(definitions, flowAttributes(attrs))
		workflowID, found := flow.SelectDefinition(candidates)
		if !found {
			return bizerror.ErrNoMatchingWorkflow
		}
		logrus.WithFields(logrus.Fields{"documentId": documentID, "workflowId": workflowID, "candidates": len(candidates),
			"docType": attrs.DocType, "department": attrs.Department, "sensitivity": attrs.Sensitivity}).
			Info("workflow selected by trigger")

		detail, events, err = e.startInstance(tx, documentID, workflowID, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(events)
	return detail, nil
}

func flowAttributes(attrs *document.Attributes) flow.DocumentAttributes {
	return flow.DocumentAttributes{DocType: attrs.DocType, Department: attrs.Department,
		Sensitivity: attrs.Sensitivity, Status: string(attrs.Status)}
}

func (e *Engine) startInstance(tx *gorm.DB, documentID, workflowID types.ID, s *session.Session) (*InstanceDetail, []*event.EventRecord, error) {
	definition, err := flow.LoadDefinition(tx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	if definition.Superseded {
		return nil, nil, fmt.Errorf("%w: %w", bizerror.ErrInvalidState, bizerror.ErrDefinitionSuperseded)
	}
	if len(definition.Steps) == 0 {
		return nil, nil, fmt.Errorf("%w: workflow %d has no steps", bizerror.ErrInvalidDefinition, workflowID)
	}
	if _, err := e.documents.GetDocumentAttributes(tx, documentID); err != nil {
		return nil, nil, err
	}

	now := types.CurrentTimestamp()
	events, err := e.cancelActiveInstances(tx, documentID, now, s)
	if err != nil {
		return nil, nil, err
	}

	instance := Instance{
		ID:           idgen.NextID(idWorker),
		DocumentID:   documentID,
		WorkflowID:   workflowID,
		CurrentOrder: definition.Steps[0].Order,
		Status:       InstanceActive,
		StarterID:    s.Identity.ID,
		StartTime:    now,
	}
	if err := tx.Create(&instance).Error; err != nil {
		return nil, nil, err
	}

	positions := flow.StepPositions(definition.Steps)
	executions := make([]StepExecution, 0, len(definition.Steps))
	warnings := []*bizerror.ErrStepUnresolved{}
	for _, step := range definition.Steps {
		a, err := e.resolver.resolve(tx, step.AssigneeKind, step.AssigneeValue)
		if err != nil {
			return nil, nil, err
		}
		execution := StepExecution{
			ID:            idgen.NextID(idWorker),
			InstanceID:    instance.ID,
			StepOrder:     step.Order,
			Position:      positions[step.Order],
			StepName:      step.Name,
			Kind:          step.Kind,
			Required:      step.Required,
			ParallelGroup: step.ParallelGroup,
			SLAHours:      step.SLAHours,
			AssigneeKind:  step.AssigneeKind,
			AssigneeValue: step.AssigneeValue,
			RequiredRole:  a.RequiredRole,
			AssigneeID:    a.AssigneeID,
			Status:        state.Waiting,
		}
		if execution.unresolved() {
			warnings = append(warnings, warningOf(&execution))
		} else if execution.Position == 1 {
			execution.Status = state.Pending
			execution.ActivateTime = now
		}
		if err := tx.Create(&execution).Error; err != nil {
			return nil, nil, err
		}
		executions = append(executions, execution)
	}

	if err := e.documents.SetDocumentStatus(tx, documentID, document.StatusReview); err != nil {
		return nil, nil, err
	}
	ev, err := event.CreateEvent(event.EntityInstance, instance.ID, event.ActionWorkflowStarted,
		event.Details{"documentId": documentID.String(), "workflowId": workflowID.String(), "workflowName": definition.Name},
		&s.Identity, now, tx)
	if err != nil {
		return nil, nil, err
	}
	events = append(events, ev)

	detail := &InstanceDetail{Instance: instance, Steps: executions, DocumentStatus: document.StatusReview, Warnings: warnings}
	detail.Stalled = stalled(&instance, executions)

	fields := logrus.Fields{"instanceId": instance.ID, "documentId": documentID, "workflowId": workflowID,
		"steps": len(executions), "unresolved": len(warnings)}
	if detail.Stalled {
		logrus.WithFields(fields).Warn("workflow instance started stalled, leading step has no assignee")
	} else {
		logrus.WithFields(fields).Info("workflow instance started")
	}
	return detail, events, nil
}

func (e *Engine) cancelActiveInstances(tx *gorm.DB, documentID types.ID, now types.Timestamp, s *session.Session) ([]*event.EventRecord, error) {
	var prior []Instance
	if err := tx.Where("document_id = ? AND status = ?", documentID, InstanceActive).Find(&prior).Error; err != nil {
		return nil, err
	}
	events := []*event.EventRecord{}
	for _, instance := range prior {
		if err := tx.Model(&Instance{}).Where("id = ?", instance.ID).
			Updates(map[string]interface{}{"status": InstanceCancelled, "complete_time": now}).Error; err != nil {
			return nil, err
		}
		if err := skipUnresolved(tx, instance.ID); err != nil {
			return nil, err
		}
		ev, err := event.CreateEvent(event.EntityInstance, instance.ID, event.ActionWorkflowCancelled,
			event.Details{"documentId": documentID.String(), "reason": "superseded by a new instance"}, &s.Identity, now, tx)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		logrus.WithFields(logrus.Fields{"instanceId": instance.ID, "documentId": documentID}).Info("active workflow instance superseded")
	}
	return events, nil
}

func skipUnresolved(tx *gorm.DB, instanceID types.ID) error {
	return tx.Model(&StepExecution{}).Where("instance_id = ? AND status IN (?)", instanceID, unresolvedStatuses).
		Update("status", state.Skipped).Error
}

// DetailInstance returns the instance with its step executions ordered by (order, id).
func (e *Engine) DetailInstance(instanceID types.ID, s *session.Session) (*InstanceDetail, error) {
	return e.detailInstance(persistence.ActiveDataSourceManager.GormDB(s.Context), instanceID)
}

func (e *Engine) detailInstance(db *gorm.DB, instanceID types.ID) (*InstanceDetail, error) {
	instance, err := loadInstance(db, instanceID)
	if err != nil {
		return nil, err
	}
	executions, err := loadExecutions(db, instanceID)
	if err != nil {
		return nil, err
	}
	attrs, err := e.documents.GetDocumentAttributes(db, instance.DocumentID)
	if err != nil {
		return nil, err
	}

	detail := &InstanceDetail{Instance: *instance, Steps: executions, DocumentStatus: attrs.Status,
		Warnings: []*bizerror.ErrStepUnresolved{}}
	for i := range executions {
		if executions[i].Status == state.Waiting && executions[i].unresolved() {
			detail.Warnings = append(detail.Warnings, warningOf(&executions[i]))
		}
	}
	detail.Stalled = stalled(instance, executions)
	return detail, nil
}

// ActiveInstanceOfDocument returns the only active instance of the document.
func (e *Engine) ActiveInstanceOfDocument(documentID types.ID, s *session.Session) (*InstanceDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var instance Instance
	if err := db.Where("document_id = ? AND status = ?", documentID, InstanceActive).First(&instance).Error; err != nil {
		return nil, notFound(err)
	}
	return e.detailInstance(db, instance.ID)
}

// QueryPendingSteps lists the steps of active instances waiting for the user's decision, oldest activation first.
func (e *Engine) QueryPendingSteps(userID types.ID, s *session.Session) ([]PendingStep, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var executions []StepExecution
	if err := db.Where("assignee_id = ? AND status IN (?)", userID, decidableStatuses).
		Order("activate_time ASC").Order("id ASC").Find(&executions).Error; err != nil {
		return nil, err
	}
	result := []PendingStep{}
	if len(executions) == 0 {
		return result, nil
	}

	ids := []types.ID{}
	for _, execution := range executions {
		ids = append(ids, execution.InstanceID)
	}
	var instances []Instance
	if err := db.Where("id IN (?) AND status = ?", ids, InstanceActive).Find(&instances).Error; err != nil {
		return nil, err
	}
	active := map[types.ID]Instance{}
	for _, instance := range instances {
		active[instance.ID] = instance
	}
	for _, execution := range executions {
		if instance, found := active[execution.InstanceID]; found {
			result = append(result, PendingStep{StepExecution: execution, DocumentID: instance.DocumentID, WorkflowID: instance.WorkflowID})
		}
	}
	return result, nil
}

func loadInstance(db *gorm.DB, id types.ID) (*Instance, error) {
	var instance Instance
	if err := db.Where(&Instance{ID: id}).First(&instance).Error; err != nil {
		return nil, notFound(err)
	}
	return &instance, nil
}

func loadExecutions(db *gorm.DB, instanceID types.ID) ([]StepExecution, error) {
	executions := []StepExecution{}
	if err := db.Where(&StepExecution{InstanceID: instanceID}).Order("step_order ASC").Order("id ASC").Find(&executions).Error; err != nil {
		return nil, err
	}
	return executions, nil
}

// currentPosition is the lowest position holding an unresolved step, 0 when every step is resolved.
func currentPosition(executions []StepExecution) int {
	position := 0
	for _, execution := range executions {
		if !state.StepLifecycle.IsTerminal(execution.Status) && (position == 0 || execution.Position < position) {
			position = execution.Position
		}
	}
	return position
}

// stalled reports an active instance whose current position has a step that was never promoted.
func stalled(instance *Instance, executions []StepExecution) bool {
	if instance.Status != InstanceActive {
		return false
	}
	position := currentPosition(executions)
	for _, execution := range executions {
		if execution.Position == position && execution.Status == state.Waiting {
			return true
		}
	}
	return false
}

func warningOf(execution *StepExecution) *bizerror.ErrStepUnresolved {
	return &bizerror.ErrStepUnresolved{StepOrder: execution.StepOrder, StepName: execution.StepName,
		Rule: ruleOf(execution.AssigneeKind, execution.AssigneeValue)}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bizerror.ErrNotFound
	}
	return err
}
