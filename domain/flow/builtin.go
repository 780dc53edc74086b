package flow

import (
	"docflow/config"
	"docflow/persistence"
	"docflow/session"

	"github.com/sirupsen/logrus"
)

// InstallBuiltinTemplates defines the catalog templates that are not installed yet, in catalog order.
// A template is identified by name among the builtin definitions.
func InstallBuiltinTemplates(catalog *config.Catalog, s *session.Session) (int, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	installed := 0
	for _, t := range catalog.Templates {
		count := 0
		if err := db.Model(&WorkflowDefinition{}).Where("name = ? AND builtin = ?", t.Name, true).Count(&count).Error; err != nil {
			return installed, err
		}
		if count > 0 {
			continue
		}
		if _, err := DefineWorkflow(templateCreation(t), s); err != nil {
			return installed, err
		}
		installed++
	}
	logrus.WithField("installed", installed).Info("builtin workflow templates installed")
	return installed, nil
}

func templateCreation(t config.Template) *WorkflowCreation {
	c := &WorkflowCreation{
		Name:        t.Name,
		Description: t.Description,
		Trigger: Trigger{
			DocumentTypes: t.Trigger.DocumentTypes,
			Departments:   t.Trigger.Departments,
			Sensitivities: t.Trigger.Sensitivities,
		},
		builtin: true,
	}
	for _, st := range t.Steps {
		c.Steps = append(c.Steps, StepCreation{
			Name:          st.Name,
			Kind:          st.Kind,
			AssigneeKind:  st.AssigneeKind,
			AssigneeValue: st.AssigneeValue,
			Optional:      st.Optional,
			SLAHours:      st.SLAHours,
			ParallelGroup: st.ParallelGroup,
		})
	}
	return c
}
