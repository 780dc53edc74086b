package flow

import (
	"sort"
	"strings"

	"github.com/fundwit/go-commons/types"
)

// Trigger is the applicability predicate of a workflow. An empty set matches any value.
type Trigger struct {
	DocumentTypes StringSet `json:"documentTypes" sql:"type:TEXT"`
	Departments   StringSet `json:"departments" sql:"type:TEXT"`
	Sensitivities StringSet `json:"sensitivities" sql:"type:TEXT"`
}

func (t Trigger) IsEmpty() bool {
	return len(t.DocumentTypes) == 0 && len(t.Departments) == 0 && len(t.Sensitivities) == 0
}

// Matches is conjunctive across the three dimensions and disjunctive within each one.
func (t Trigger) Matches(attrs DocumentAttributes) bool {
	return t.DocumentTypes.allows(attrs.DocType) &&
		t.Departments.allows(attrs.Department) &&
		t.Sensitivities.allows(attrs.Sensitivity)
}

func (t Trigger) normalized() Trigger {
	return Trigger{
		DocumentTypes: t.DocumentTypes.normalized(),
		Departments:   t.Departments.normalized(),
		Sensitivities: t.Sensitivities.normalized(),
	}
}

func (s StringSet) allows(value string) bool {
	if len(s) == 0 {
		return true
	}
	value = strings.TrimSpace(value)
	for _, v := range s {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func (s StringSet) normalized() StringSet {
	r := StringSet{}
	for _, v := range s {
		v = strings.TrimSpace(v)
		if v == "" || r.contains(v) {
			continue
		}
		r = append(r, v)
	}
	return r
}

func (s StringSet) contains(value string) bool {
	for _, v := range s {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// ResolveTriggers returns the ids of the active definitions matching attrs, earliest created first.
func ResolveTriggers(definitions []WorkflowDefinition, attrs DocumentAttributes) []types.ID {
	candidates := make([]WorkflowDefinition, 0, len(definitions))
	for _, d := range definitions {
		if !d.Superseded && d.Trigger.Matches(attrs) {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return createdBefore(candidates[i], candidates[j])
	})
	ids := make([]types.ID, 0, len(candidates))
	for _, d := range candidates {
		ids = append(ids, d.ID)
	}
	return ids
}

// SelectDefinition picks the single workflow to start among the resolved candidates.
func SelectDefinition(candidates []types.ID) (types.ID, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[0], true
}

// ids are time ordered, create time only decides between ids of different workers
func createdBefore(a, b WorkflowDefinition) bool {
	at, bt := a.CreateTime.Time(), b.CreateTime.Time()
	if !at.Equal(bt) && !a.CreateTime.IsZero() && !b.CreateTime.IsZero() {
		return at.Before(bt)
	}
	return a.ID < b.ID
}
