package flow_test

import (
	"docflow/bizerror"
	"docflow/domain/flow"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestParseDefinitionDocument(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should parse a conforming document", func(t *testing.T) {
		c, err := flow.ParseDefinitionDocument([]byte(`{
			"name": "Invoice approval",
			"trigger": {"documentTypes": ["Invoice"], "departments": ["Finance"]},
			"steps": [
				{"order": 1, "name": "Check", "kind": "verify", "assigneeKind": "department", "assigneeValue": "Finance", "slaHours": 8},
				{"order": 2, "name": "Approve", "kind": "approve", "assigneeKind": "role", "assigneeValue": "Director", "optional": true}
			]}`))
		Expect(err).To(BeNil())
		Expect(c.Name).To(Equal("Invoice approval"))
		Expect(c.Trigger.Departments).To(Equal(flow.StringSet{"Finance"}))
		Expect(c.Steps).To(Equal([]flow.StepCreation{
			{Order: 1, Name: "Check", Kind: "verify", AssigneeKind: "department", AssigneeValue: "Finance", SLAHours: 8},
			{Order: 2, Name: "Approve", Kind: "approve", AssigneeKind: "role", AssigneeValue: "Director", Optional: true},
		}))
		Expect(flow.ValidateCreation(c)).To(BeNil())
	})

	t.Run("should reject documents violating the schema", func(t *testing.T) {
		documents := []string{
			`{"name": "x", "steps": []}`,
			`{"steps": [{"name": "a", "kind": "review", "assigneeKind": "role", "assigneeValue": "Reviewer"}]}`,
			`{"name": "x", "steps": [{"name": "a", "kind": "stamp", "assigneeKind": "role", "assigneeValue": "Reviewer"}]}`,
			`{"name": "x", "steps": [{"name": "a", "kind": "review", "assigneeKind": "role", "assigneeValue": "Reviewer", "color": "red"}]}`,
			`{"name": "x", "steps": [{"name": "a", "kind": "review", "assigneeKind": "role", "assigneeValue": "Reviewer", "slaHours": -1}]}`,
		}
		for _, d := range documents {
			c, err := flow.ParseDefinitionDocument([]byte(d))
			Expect(c).To(BeNil())
			Expect(errors.Is(err, bizerror.ErrInvalidDefinition)).To(BeTrue(), d)
		}
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		_, err := flow.ParseDefinitionDocument([]byte(`{"name": `))
		Expect(errors.Is(err, bizerror.ErrInvalidDefinition)).To(BeTrue())
		Expect(strings.HasPrefix(err.Error(), bizerror.ErrInvalidDefinition.Error()+": ")).To(BeTrue())
	})
}
