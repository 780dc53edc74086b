package flow_test

import (
	"context"
	"docflow/bizerror"
	"docflow/config"
	"docflow/domain/flow"
	"docflow/event"
	"docflow/persistence"
	"docflow/session"
	"docflow/testinfra"
	"errors"
	"testing"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T, testDatabase **testinfra.TestDatabase) {
	db := testinfra.StartTestDatabase("docflow")
	*testDatabase = db
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&flow.WorkflowDefinition{}, &flow.WorkflowStep{}, &event.EventRecord{}).Error)
	persistence.ActiveDataSourceManager = db.DS
}

func teardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopTestDatabase(testDatabase)
	}
}

var (
	testSession = session.NewSession(context.Background(), session.Identity{ID: 1001, Name: "Admin User", Role: "Admin"})

	contractCreation = &flow.WorkflowCreation{
		Name:        "Contract Review",
		Description: "legal then sign-off",
		Trigger:     flow.Trigger{DocumentTypes: flow.StringSet{"Contract", " contract ", ""}},
		Steps: []flow.StepCreation{
			{Order: 1, Name: "Legal review", Kind: "review", AssigneeKind: flow.AssigneeUser, AssigneeValue: "Legal Counsel", SLAHours: 24},
			{Order: 2, Name: "Finance check", Kind: "verify", AssigneeKind: flow.AssigneeRole, AssigneeValue: "Approver", ParallelGroup: 1},
			{Order: 3, Name: "Ops check", Kind: "verify", AssigneeKind: flow.AssigneeDepartment, AssigneeValue: "Operations", ParallelGroup: 1, Optional: true},
			{Order: 4, Name: "Sign-off", Kind: "sign", AssigneeKind: flow.AssigneeRole, AssigneeValue: "Director"},
		},
	}
)

func TestDefineWorkflow(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should persist definition with ordered steps", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		detail, err := flow.DefineWorkflow(contractCreation, testSession)
		Expect(err).To(BeNil())
		Expect(detail.ID).ToNot(BeZero())
		Expect(detail.Trigger.DocumentTypes).To(Equal(flow.StringSet{"Contract"}))
		Expect(len(detail.Steps)).To(Equal(4))
		Expect(detail.Steps[2].Required).To(BeFalse())
		Expect(detail.Steps[3].Required).To(BeTrue())

		loaded, err := flow.GetDefinition(detail.ID, testSession)
		Expect(err).To(BeNil())
		Expect(loaded.Name).To(Equal("Contract Review"))
		Expect(loaded.Description).To(Equal("legal then sign-off"))
		Expect(loaded.Trigger).To(Equal(flow.Trigger{DocumentTypes: flow.StringSet{"Contract"}, Departments: flow.StringSet{}, Sensitivities: flow.StringSet{}}))
		Expect(loaded.Builtin).To(BeFalse())
		Expect(loaded.Superseded).To(BeFalse())
		Expect(loaded.Steps).To(Equal(detail.Steps))

		events, err := event.QueryEvents(testDatabase.DS.GormDB(context.Background()), event.EntityWorkflow, detail.ID)
		Expect(err).To(BeNil())
		Expect(len(events)).To(Equal(1))
		Expect(events[0].Action).To(Equal(event.ActionWorkflowDefined))
		Expect(events[0].ActorID).To(Equal(types.ID(1001)))
	})

	t.Run("should number steps by position when orders are omitted", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		detail, err := flow.DefineWorkflow(&flow.WorkflowCreation{Name: "two steps", Steps: []flow.StepCreation{
			{Name: "b", Kind: "review", AssigneeKind: "role", AssigneeValue: "Reviewer"},
			{Name: "a", Kind: "approve", AssigneeKind: "role", AssigneeValue: "Approver"},
		}}, testSession)
		Expect(err).To(BeNil())
		Expect(detail.Steps[0].Order).To(Equal(1))
		Expect(detail.Steps[0].Name).To(Equal("b"))
		Expect(detail.Steps[1].Order).To(Equal(2))
	})

	t.Run("should reject malformed definitions", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		step := func(order int, group int) flow.StepCreation {
			return flow.StepCreation{Order: order, Name: "s", Kind: "review", AssigneeKind: "role", AssigneeValue: "Reviewer", ParallelGroup: group}
		}
		invalid := []*flow.WorkflowCreation{
			{Name: "no steps"},
			{Name: "duplicated", Steps: []flow.StepCreation{step(1, 0), step(1, 0)}},
			{Name: "gap", Steps: []flow.StepCreation{step(1, 0), step(3, 0)}},
			{Name: "not from one", Steps: []flow.StepCreation{step(2, 0)}},
			{Name: "mixed", Steps: []flow.StepCreation{step(1, 0), step(0, 0)}},
			{Name: "split group", Steps: []flow.StepCreation{step(1, 1), step(2, 0), step(3, 1)}},
			{Name: "bad kind", Steps: []flow.StepCreation{{Name: "s", Kind: "stamp", AssigneeKind: "role", AssigneeValue: "Reviewer"}}},
			{Name: "bad rule", Steps: []flow.StepCreation{{Name: "s", Kind: "review", AssigneeKind: "team", AssigneeValue: "x"}}},
			{Name: "", Steps: []flow.StepCreation{step(1, 0)}},
		}
		for _, c := range invalid {
			detail, err := flow.DefineWorkflow(c, testSession)
			Expect(detail).To(BeNil())
			Expect(errors.Is(err, bizerror.ErrInvalidDefinition)).To(BeTrue(), c.Name)
		}

		definitions, err := flow.QueryDefinitions(&flow.DefinitionQuery{IncludeSuperseded: true}, testSession)
		Expect(err).To(BeNil())
		Expect(definitions).To(BeEmpty())
	})

	t.Run("should catch database errors", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		testDatabase.DS.GormDB(context.Background()).DropTable(&flow.WorkflowStep{})
		_, err := flow.DefineWorkflow(contractCreation, testSession)
		Expect(err).ToNot(BeNil())

		definitions, err := flow.QueryDefinitions(&flow.DefinitionQuery{IncludeSuperseded: true}, testSession)
		Expect(err).To(BeNil())
		Expect(definitions).To(BeEmpty())
	})
}

func TestGetDefinition(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should return not found for unknown definition", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		detail, err := flow.GetDefinition(12345, testSession)
		Expect(detail).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestSupersedeAndMatch(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("superseded definitions should stay readable but inert", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		first, err := flow.DefineWorkflow(contractCreation, testSession)
		Expect(err).To(BeNil())
		second, err := flow.DefineWorkflow(contractCreation, testSession)
		Expect(err).To(BeNil())

		attrs := flow.DocumentAttributes{DocType: "Contract", Department: "Legal"}
		ids, err := flow.MatchTriggers(attrs, testSession)
		Expect(err).To(BeNil())
		Expect(ids).To(Equal([]types.ID{first.ID, second.ID}))

		Expect(flow.SupersedeDefinition(first.ID, testSession)).To(BeNil())
		Expect(flow.SupersedeDefinition(first.ID, testSession)).To(BeNil())

		ids, err = flow.MatchTriggers(attrs, testSession)
		Expect(err).To(BeNil())
		Expect(ids).To(Equal([]types.ID{second.ID}))

		active, err := flow.ListActiveDefinitions(testSession)
		Expect(err).To(BeNil())
		Expect(len(active)).To(Equal(1))

		all, err := flow.QueryDefinitions(&flow.DefinitionQuery{Name: "Contract", IncludeSuperseded: true}, testSession)
		Expect(err).To(BeNil())
		Expect(len(all)).To(Equal(2))

		loaded, err := flow.GetDefinition(first.ID, testSession)
		Expect(err).To(BeNil())
		Expect(loaded.Superseded).To(BeTrue())

		events, err := event.QueryEvents(testDatabase.DS.GormDB(context.Background()), event.EntityWorkflow, first.ID)
		Expect(err).To(BeNil())
		Expect(len(events)).To(Equal(2))
		Expect(events[1].Action).To(Equal(event.ActionWorkflowSuperseded))

		Expect(flow.SupersedeDefinition(999, testSession)).To(Equal(bizerror.ErrNotFound))
	})
}

func TestInstallBuiltinTemplates(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should install catalog templates once", func(t *testing.T) {
		setup(t, &testDatabase)
		defer teardown(t, testDatabase)

		n, err := flow.InstallBuiltinTemplates(config.DefaultCatalog(), testSession)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(4))
		n, err = flow.InstallBuiltinTemplates(config.DefaultCatalog(), testSession)
		Expect(err).To(BeNil())
		Expect(n).To(BeZero())

		definitions, err := flow.ListActiveDefinitions(testSession)
		Expect(err).To(BeNil())
		Expect(len(definitions)).To(Equal(4))
		Expect(definitions[0].Name).To(Equal("Engineering Drawing"))
		Expect(definitions[0].Builtin).To(BeTrue())
		Expect(definitions[3].Name).To(Equal("Standard Review"))

		ids, err := flow.MatchTriggers(flow.DocumentAttributes{DocType: "drawing", Department: "Engineering"}, testSession)
		Expect(err).To(BeNil())
		Expect(ids).To(Equal([]types.ID{definitions[0].ID, definitions[3].ID}))

		ids, err = flow.MatchTriggers(flow.DocumentAttributes{DocType: "Invoice", Department: "Finance"}, testSession)
		Expect(err).To(BeNil())
		Expect(ids).To(Equal([]types.ID{definitions[3].ID}))

		standard, err := flow.GetDefinition(definitions[3].ID, testSession)
		Expect(err).To(BeNil())
		Expect(len(standard.Steps)).To(Equal(2))
		Expect(standard.Steps[0].AssigneeKind).To(Equal(flow.AssigneeRole))
		Expect(standard.Steps[0].AssigneeValue).To(Equal("Department Lead"))
		Expect(standard.Steps[1].AssigneeValue).To(Equal("Department Manager"))
	})
}
