package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidDefinition    = errors.New("invalid workflow definition")
	ErrAlreadyDecided       = errors.New("step already decided")
	ErrAssigneeUnresolved   = errors.New("assignee unresolved")
	ErrNoMatchingWorkflow   = errors.New("no matching workflow")
	ErrDefinitionSuperseded = errors.New("workflow definition superseded")
	ErrTooManyRequests      = errors.New("too many requests")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrStepUnresolved is the warning attached to a step whose assignee could not be resolved.
type ErrStepUnresolved struct {
	StepOrder int    `json:"stepOrder"`
	StepName  string `json:"stepName"`
	Rule      string `json:"rule"`
}

func (e *ErrStepUnresolved) Error() string {
	return "assignee unresolved for step '" + e.StepName + "' (" + e.Rule + ")"
}

func (e *ErrStepUnresolved) Unwrap() error {
	return ErrAssigneeUnresolved
}
