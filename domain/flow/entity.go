package flow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	AssigneeUser       = "user"
	AssigneeRole       = "role"
	AssigneeDepartment = "department"
)

type WorkflowDefinition struct {
	ID          types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name        string   `json:"name"`
	Description string   `json:"description" sql:"type:TEXT"`

	Trigger Trigger `json:"trigger" gorm:"embedded;embedded_prefix:trigger_"`

	Builtin    bool            `json:"builtin"`
	Superseded bool            `json:"superseded"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type WorkflowStep struct {
	ID         types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	WorkflowID types.ID `json:"workflowId" gorm:"index:idx_step_workflow" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Order         int    `json:"order" gorm:"column:step_order"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	AssigneeKind  string `json:"assigneeKind"`
	AssigneeValue string `json:"assigneeValue"`
	Required      bool   `json:"required"`
	SLAHours      int    `json:"slaHours"`
	ParallelGroup int    `json:"parallelGroup"`
}

type WorkflowDetail struct {
	WorkflowDefinition
	Steps []WorkflowStep `json:"steps"`
}

type StepCreation struct {
	Order         int    `json:"order"         validate:"min=0"`
	Name          string `json:"name"          validate:"required"`
	Kind          string `json:"kind"          validate:"required,oneof=review approve sign annotate verify route"`
	AssigneeKind  string `json:"assigneeKind"  validate:"required,oneof=user role department"`
	AssigneeValue string `json:"assigneeValue" validate:"required"`
	Optional      bool   `json:"optional"`
	SLAHours      int    `json:"slaHours"      validate:"min=0"`
	ParallelGroup int    `json:"parallelGroup" validate:"min=0"`
}

type WorkflowCreation struct {
	Name        string         `json:"name"  validate:"required"`
	Description string         `json:"description"`
	Trigger     Trigger        `json:"trigger"`
	Steps       []StepCreation `json:"steps" validate:"dive"`

	builtin bool
}

// DocumentAttributes is the snapshot of a document the triggers are evaluated against.
type DocumentAttributes struct {
	DocType     string `json:"docType"`
	Department  string `json:"department"`
	Sensitivity string `json:"sensitivity"`
	Status      string `json:"status"`
}

// StringSet is a list of values persisted as a json array.
type StringSet []string

func (t StringSet) Value() (driver.Value, error) {
	if t == nil {
		t = StringSet{}
	}
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *StringSet) Scan(v interface{}) error {
	if v == nil {
		*c = StringSet{}
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
