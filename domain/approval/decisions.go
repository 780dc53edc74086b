package approval

import (
	"docflow/bizerror"
	"docflow/domain/document"
	"docflow/domain/state"
	"docflow/event"
	"docflow/persistence"
	"docflow/session"
	"errors"
	"fmt"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var validResults = map[Result]bool{
	ResultApproved: true, ResultRejected: true, ResultSigned: true, ResultReviewed: true, ResultVerified: true,
}

// RecordDecision applies the actor's decision to a pending or in progress step.
// The first committed decision wins, later ones fail with ErrAlreadyDecided.
// A rejection cancels the instance, any other result completes the step and advances the instance.
func (e *Engine) RecordDecision(instanceID, stepID types.ID, req *DecisionRequest, s *session.Session) (*InstanceDetail, error) {
	if !validResults[req.Result] {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("unknown decision result '%s'", req.Result)}
	}

	var events []*event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		instance, step, err := loadStep(tx, instanceID, stepID)
		if err != nil {
			return err
		}
		if state.StepLifecycle.IsTerminal(step.Status) {
			return bizerror.ErrAlreadyDecided
		}
		if instance.Status != InstanceActive {
			return fmt.Errorf("%w: instance is %s", bizerror.ErrInvalidState, instance.Status)
		}
		if !state.StepLifecycle.CanTransit(step.Status, state.Completed) {
			return fmt.Errorf("%w: step '%s' is %s", bizerror.ErrInvalidState, step.StepName, step.Status)
		}
		if err := e.resolver.authorize(s.Identity.ID, s.Identity.Role, step); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		r := tx.Model(&StepExecution{}).Where("id = ? AND status IN (?)", step.ID, decidableStatuses).
			Updates(map[string]interface{}{"status": state.Completed, "result": req.Result,
				"decider_id": s.Identity.ID, "comment": req.Comment, "decide_time": now})
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return bizerror.ErrAlreadyDecided
		}

		ev, err := event.CreateEvent(event.EntityStep, step.ID, event.ActionStepDecided,
			event.Details{"instanceId": instance.ID.String(), "step": step.StepName, "order": strconv.Itoa(step.StepOrder),
				"result": string(req.Result), "comment": req.Comment}, &s.Identity, now, tx)
		if err != nil {
			return err
		}
		events = append(events, ev)

		var more []*event.EventRecord
		if req.Result == ResultRejected {
			more, err = e.reject(tx, instance, step, now, s)
		} else {
			more, err = e.advance(tx, instance, now, s)
		}
		if err != nil {
			return err
		}
		events = append(events, more...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(events)
	return e.detailInstance(db, instanceID)
}

func (e *Engine) reject(tx *gorm.DB, instance *Instance, step *StepExecution, now types.Timestamp, s *session.Session) ([]*event.EventRecord, error) {
	if err := skipUnresolved(tx, instance.ID); err != nil {
		return nil, err
	}
	if err := finishInstance(tx, instance, InstanceCancelled, now); err != nil {
		return nil, err
	}
	if err := e.documents.SetDocumentStatus(tx, instance.DocumentID, document.StatusRejected); err != nil {
		return nil, err
	}
	ev, err := event.CreateEvent(event.EntityInstance, instance.ID, event.ActionWorkflowRejected,
		event.Details{"documentId": instance.DocumentID.String(), "step": step.StepName}, &s.Identity, now, tx)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"instanceId": instance.ID, "documentId": instance.DocumentID, "step": step.StepName,
		"actor": s.Identity.Name}).Info("workflow instance rejected")
	return []*event.EventRecord{ev}, nil
}

// advance completes the instance once every required step is resolved,
// otherwise it promotes the waiting steps of the current position.
func (e *Engine) advance(tx *gorm.DB, instance *Instance, now types.Timestamp, s *session.Session) ([]*event.EventRecord, error) {
	executions, err := loadExecutions(tx, instance.ID)
	if err != nil {
		return nil, err
	}

	if requiredResolved(executions) {
		if err := skipUnresolved(tx, instance.ID); err != nil {
			return nil, err
		}
		if err := finishInstance(tx, instance, InstanceCompleted, now); err != nil {
			return nil, err
		}
		if err := e.documents.SetDocumentStatus(tx, instance.DocumentID, document.StatusApproved); err != nil {
			return nil, err
		}
		ev, err := event.CreateEvent(event.EntityInstance, instance.ID, event.ActionWorkflowCompleted,
			event.Details{"documentId": instance.DocumentID.String()}, &s.Identity, now, tx)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"instanceId": instance.ID, "documentId": instance.DocumentID}).Info("workflow instance completed")
		return []*event.EventRecord{ev}, nil
	}

	position := currentPosition(executions)
	currentOrder := 0
	for i := range executions {
		execution := &executions[i]
		if execution.Position != position {
			continue
		}
		if currentOrder == 0 || execution.StepOrder < currentOrder {
			currentOrder = execution.StepOrder
		}
		if execution.Status != state.Waiting {
			continue
		}
		if err := e.promote(tx, instance, execution, now); err != nil {
			return nil, err
		}
	}
	if currentOrder != instance.CurrentOrder {
		if err := tx.Model(&Instance{}).Where("id = ?", instance.ID).Update("current_order", currentOrder).Error; err != nil {
			return nil, err
		}
		instance.CurrentOrder = currentOrder
	}
	return nil, nil
}

// promote activates a waiting step, resolving its assignee first when needed. An unresolved step stays waiting.
func (e *Engine) promote(tx *gorm.DB, instance *Instance, execution *StepExecution, now types.Timestamp) error {
	changes := map[string]interface{}{}
	if execution.unresolved() {
		a, err := e.resolver.resolve(tx, execution.AssigneeKind, execution.AssigneeValue)
		if err != nil {
			return err
		}
		if a.AssigneeID == 0 {
			logrus.WithFields(logrus.Fields{"instanceId": instance.ID, "step": execution.StepName,
				"rule": ruleOf(execution.AssigneeKind, execution.AssigneeValue)}).Warn("workflow instance stalled, step has no assignee")
			return nil
		}
		changes["assignee_id"] = a.AssigneeID
		changes["required_role"] = a.RequiredRole
	}
	changes["status"] = state.Pending
	changes["activate_time"] = now
	return tx.Model(&StepExecution{}).Where("id = ? AND status = ?", execution.ID, state.Waiting).Updates(changes).Error
}

func requiredResolved(executions []StepExecution) bool {
	for _, execution := range executions {
		if execution.Required && !state.StepLifecycle.IsTerminal(execution.Status) {
			return false
		}
	}
	return true
}

func finishInstance(tx *gorm.DB, instance *Instance, status InstanceStatus, now types.Timestamp) error {
	r := tx.Model(&Instance{}).Where("id = ? AND status = ?", instance.ID, InstanceActive).
		Updates(map[string]interface{}{"status": status, "complete_time": now})
	if r.Error != nil {
		return r.Error
	}
	if r.RowsAffected == 0 {
		return fmt.Errorf("%w: instance is no longer active", bizerror.ErrInvalidState)
	}
	instance.Status, instance.CompleteTime = status, now
	return nil
}

// BeginStep marks a pending step as being worked on.
func (e *Engine) BeginStep(instanceID, stepID types.ID, s *session.Session) (*StepExecution, error) {
	var step *StepExecution
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		instance, loaded, err := loadStep(tx, instanceID, stepID)
		if err != nil {
			return err
		}
		step = loaded
		if state.StepLifecycle.IsTerminal(step.Status) {
			return bizerror.ErrAlreadyDecided
		}
		if instance.Status != InstanceActive || !state.StepLifecycle.CanTransit(step.Status, state.InProgress) {
			return fmt.Errorf("%w: step '%s' is %s", bizerror.ErrInvalidState, step.StepName, step.Status)
		}
		if err := e.resolver.authorize(s.Identity.ID, s.Identity.Role, step); err != nil {
			return err
		}

		r := tx.Model(&StepExecution{}).Where("id = ? AND status = ?", step.ID, state.Pending).Update("status", state.InProgress)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return fmt.Errorf("%w: step '%s' is no longer pending", bizerror.ErrInvalidState, step.StepName)
		}
		step.Status = state.InProgress

		ev, err = event.CreateEvent(event.EntityStep, step.ID, event.ActionStepBegun,
			event.Details{"instanceId": instance.ID.String(), "step": step.StepName}, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.InvokeHandlersFunc(ev)
	return step, nil
}

// AssignStep supplies the assignee of a step whose rule resolved nobody.
// The assignee must hold the authority of the step's required role when the catalog knows it.
// A waiting step of the current position becomes pending.
func (e *Engine) AssignStep(instanceID, stepID, userID types.ID, s *session.Session) (*InstanceDetail, error) {
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		instance, step, err := loadStep(tx, instanceID, stepID)
		if err != nil {
			return err
		}
		if state.StepLifecycle.IsTerminal(step.Status) {
			return bizerror.ErrAlreadyDecided
		}
		if instance.Status != InstanceActive {
			return fmt.Errorf("%w: instance is %s", bizerror.ErrInvalidState, instance.Status)
		}
		if !step.unresolved() {
			return fmt.Errorf("%w: step '%s' is already assigned", bizerror.ErrInvalidState, step.StepName)
		}

		assignee, err := e.resolver.directory.FindByID(tx, userID)
		if err != nil {
			return err
		}
		ranking := e.resolver.ranking
		if !ranking.ApprovalCapable(assignee.Role) {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("user '%s' cannot approve", assignee.Name)}
		}
		requiredRole := assignee.Role
		if step.RequiredRole != "" && ranking.Known(step.RequiredRole) {
			if !ranking.CanActOnBehalf(assignee.Role, step.RequiredRole) {
				return &bizerror.ErrBadParam{Cause: fmt.Errorf("user '%s' does not hold the authority of '%s'", assignee.Name, step.RequiredRole)}
			}
			requiredRole = step.RequiredRole
		}
		if !ranking.CanActOnBehalf(s.Identity.Role, requiredRole) || !ranking.CanActOnBehalf(s.Identity.Role, assignee.Role) {
			return bizerror.ErrUnauthorized
		}

		executions, err := loadExecutions(tx, instance.ID)
		if err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		changes := map[string]interface{}{"assignee_id": assignee.ID, "required_role": requiredRole}
		if step.Status == state.Waiting && step.Position == currentPosition(executions) {
			changes["status"] = state.Pending
			changes["activate_time"] = now
		}
		r := tx.Model(&StepExecution{}).Where("id = ? AND status = ? AND assignee_id = ?", step.ID, step.Status, 0).Updates(changes)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return bizerror.ErrAlreadyDecided
		}

		ev, err = event.CreateEvent(event.EntityStep, step.ID, event.ActionStepAssigned,
			event.Details{"instanceId": instance.ID.String(), "step": step.StepName, "assigneeId": assignee.ID.String(),
				"assignee": assignee.Name}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.InvokeHandlersFunc(ev)
	return e.detailInstance(db, instanceID)
}

// lockInstance bumps the revision of the instance, it must be the first statement of tx.
// Changes to one instance queue on its row lock and read the state committed before them.
func lockInstance(tx *gorm.DB, instanceID types.ID) error {
	r := tx.Model(&Instance{}).Where("id = ?", instanceID).UpdateColumn("revision", gorm.Expr("revision + 1"))
	if r.Error != nil {
		return r.Error
	}
	if r.RowsAffected == 0 {
		return bizerror.ErrNotFound
	}
	return nil
}

// loadStep locks the instance, then loads it with the step.
func loadStep(tx *gorm.DB, instanceID, stepID types.ID) (*Instance, *StepExecution, error) {
	if err := lockInstance(tx, instanceID); err != nil {
		return nil, nil, err
	}
	instance, err := loadInstance(tx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	var step StepExecution
	if err := tx.Where("id = ? AND instance_id = ?", stepID, instanceID).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, bizerror.ErrNotFound
		}
		return nil, nil, err
	}
	return instance, &step, nil
}
