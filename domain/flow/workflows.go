package flow

import (
	"docflow/bizerror"
	"docflow/event"
	"docflow/idgen"
	"docflow/persistence"
	"docflow/session"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
	validate = validator.New()

	DefineWorkflowFunc        = DefineWorkflow
	GetDefinitionFunc         = GetDefinition
	QueryDefinitionsFunc      = QueryDefinitions
	ListActiveDefinitionsFunc = ListActiveDefinitions
	SupersedeDefinitionFunc   = SupersedeDefinition
	MatchTriggersFunc         = MatchTriggers
	ImportDefinitionFunc      = ImportDefinition
)

type DefinitionQuery struct {
	Name              string `form:"name"`
	IncludeSuperseded bool   `form:"includeSuperseded"`
}

func DefineWorkflow(c *WorkflowCreation, s *session.Session) (*WorkflowDetail, error) {
	detail, err := buildDefinition(c)
	if err != nil {
		return nil, err
	}

	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		for i := range detail.Steps {
			if err := tx.Create(&detail.Steps[i]).Error; err != nil {
				return err
			}
		}
		ev, err = event.CreateEvent(event.EntityWorkflow, detail.ID, event.ActionWorkflowDefined,
			event.Details{"name": detail.Name, "steps": strconv.Itoa(len(detail.Steps))}, &s.Identity, detail.CreateTime, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.InvokeHandlersFunc(ev)

	logrus.WithFields(logrus.Fields{"workflowId": detail.ID, "name": detail.Name, "steps": len(detail.Steps)}).Info("workflow defined")
	return detail, nil
}

// ValidateCreation checks a creation without persisting it.
func ValidateCreation(c *WorkflowCreation) error {
	_, err := buildDefinition(c)
	return err
}

func buildDefinition(c *WorkflowCreation) (*WorkflowDetail, error) {
	if c == nil || len(c.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", bizerror.ErrInvalidDefinition)
	}
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", bizerror.ErrInvalidDefinition, err)
	}

	steps := make([]StepCreation, len(c.Steps))
	copy(steps, c.Steps)
	positional := true
	for _, st := range steps {
		if st.Order != 0 {
			positional = false
		}
	}
	for i := range steps {
		if positional {
			steps[i].Order = i + 1
		} else if steps[i].Order == 0 {
			return nil, fmt.Errorf("%w: step '%s' has no order", bizerror.ErrInvalidDefinition, steps[i].Name)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	for i, st := range steps {
		if st.Order != i+1 {
			return nil, fmt.Errorf("%w: step orders must be unique and contiguous from 1, got %d at position %d",
				bizerror.ErrInvalidDefinition, st.Order, i+1)
		}
	}
	if err := checkParallelGroups(steps); err != nil {
		return nil, err
	}

	detail := &WorkflowDetail{
		WorkflowDefinition: WorkflowDefinition{
			ID:          idgen.NextID(idWorker),
			Name:        strings.TrimSpace(c.Name),
			Description: c.Description,
			Trigger:     c.Trigger.normalized(),
			Builtin:     c.builtin,
			CreateTime:  types.CurrentTimestamp(),
		},
	}
	for _, st := range steps {
		detail.Steps = append(detail.Steps, WorkflowStep{
			ID:            idgen.NextID(idWorker),
			WorkflowID:    detail.ID,
			Order:         st.Order,
			Name:          st.Name,
			Kind:          st.Kind,
			AssigneeKind:  st.AssigneeKind,
			AssigneeValue: strings.TrimSpace(st.AssigneeValue),
			Required:      !st.Optional,
			SLAHours:      st.SLAHours,
			ParallelGroup: st.ParallelGroup,
		})
	}
	return detail, nil
}

// a positive parallel group must occupy one contiguous run of orders
func checkParallelGroups(sorted []StepCreation) error {
	closed := map[int]bool{}
	for i, st := range sorted {
		if st.ParallelGroup == 0 {
			continue
		}
		if closed[st.ParallelGroup] {
			return fmt.Errorf("%w: parallel group %d is split by other steps", bizerror.ErrInvalidDefinition, st.ParallelGroup)
		}
		if i+1 == len(sorted) || sorted[i+1].ParallelGroup != st.ParallelGroup {
			closed[st.ParallelGroup] = true
		}
	}
	return nil
}

// StepPositions maps each step order to its position. Consecutive steps sharing a positive
// parallel group occupy the same position, every other step has a position of its own.
func StepPositions(steps []WorkflowStep) map[int]int {
	sorted := make([]WorkflowStep, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	positions := map[int]int{}
	position := 0
	for i, st := range sorted {
		if i == 0 || st.ParallelGroup == 0 || sorted[i-1].ParallelGroup != st.ParallelGroup {
			position++
		}
		positions[st.Order] = position
	}
	return positions
}

func GetDefinition(id types.ID, s *session.Session) (*WorkflowDetail, error) {
	return LoadDefinition(persistence.ActiveDataSourceManager.GormDB(s.Context), id)
}

// LoadDefinition reads a definition and its ordered steps on db.
func LoadDefinition(db *gorm.DB, id types.ID) (*WorkflowDetail, error) {
	detail := WorkflowDetail{}
	if err := db.Where(&WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if err := db.Where(&WorkflowStep{WorkflowID: id}).Order("step_order ASC").Find(&detail.Steps).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryDefinitions(q *DefinitionQuery, s *session.Session) ([]WorkflowDefinition, error) {
	definitions := []WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if q.Name != "" {
		db = db.Where("name LIKE ?", "%"+q.Name+"%")
	}
	if !q.IncludeSuperseded {
		db = db.Where("superseded = ?", false)
	}
	if err := db.Order("id ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return definitions, nil
}

func ListActiveDefinitions(s *session.Session) ([]WorkflowDefinition, error) {
	return LoadActiveDefinitions(persistence.ActiveDataSourceManager.GormDB(s.Context))
}

func LoadActiveDefinitions(db *gorm.DB) ([]WorkflowDefinition, error) {
	definitions := []WorkflowDefinition{}
	if err := db.Where("superseded = ?", false).Order("id ASC").Order("create_time ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return definitions, nil
}

func MatchTriggers(attrs DocumentAttributes, s *session.Session) ([]types.ID, error) {
	definitions, err := ListActiveDefinitionsFunc(s)
	if err != nil {
		return nil, err
	}
	return ResolveTriggers(definitions, attrs), nil
}

// SupersedeDefinition makes a definition inert for trigger matching and new instances.
// Running instances keep using it.
func SupersedeDefinition(id types.ID, s *session.Session) error {
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		d := WorkflowDefinition{}
		if err := tx.Where(&WorkflowDefinition{ID: id}).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		if d.Superseded {
			return nil
		}
		if err := tx.Model(&WorkflowDefinition{}).Where("id = ?", id).Update("superseded", true).Error; err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(event.EntityWorkflow, id, event.ActionWorkflowSuperseded,
			event.Details{"name": d.Name}, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	if ev != nil {
		event.InvokeHandlersFunc(ev)
	}
	return nil
}
