// Package config holds the process-wide domain catalog: roles and their authority,
// document vocabularies, seed users and the built-in workflow templates.
//
// A Catalog is loaded once at startup and handed to the components that need it.
// It must be treated as read-only after loading.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v3"
)

type Role struct {
	Name            string `yaml:"name"`
	Level           int    `yaml:"level"`
	ApprovalCapable bool   `yaml:"approvalCapable"`
}

type RetentionPolicy struct {
	Name  string `yaml:"name"`
	Years int    `yaml:"years"` // -1: custom, 0: until superseded
}

type SeedUser struct {
	ID         uint64 `yaml:"id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

type TemplateTrigger struct {
	DocumentTypes []string `yaml:"documentTypes"`
	Departments   []string `yaml:"departments"`
	Sensitivities []string `yaml:"sensitivities"`
}

type TemplateStep struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	AssigneeKind  string `yaml:"assigneeKind"`
	AssigneeValue string `yaml:"assigneeValue"`
	Optional      bool   `yaml:"optional"`
	SLAHours      int    `yaml:"slaHours"`
	ParallelGroup int    `yaml:"parallelGroup"`
}

type Template struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Trigger     TemplateTrigger `yaml:"trigger"`
	Steps       []TemplateStep  `yaml:"steps"`
}

type Catalog struct {
	Roles             []Role            `yaml:"roles"`
	DocumentTypes     []string          `yaml:"documentTypes"`
	Departments       []string          `yaml:"departments"`
	Sensitivities     []string          `yaml:"sensitivities"`
	RetentionPolicies []RetentionPolicy `yaml:"retentionPolicies"`
	Users             []SeedUser        `yaml:"users"`
	Templates         []Template        `yaml:"templates"`
}

// LoadCatalog reads a catalog file, the built-in catalog is returned when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalog parses the compiled-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog([]byte(defaultCatalogYAML))
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) FindRole(name string) (Role, bool) {
	for _, r := range c.Roles {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Role{}, false
}

func (c *Catalog) FindRetentionPolicy(name string) (RetentionPolicy, bool) {
	for _, p := range c.RetentionPolicies {
		if p.Name == name {
			return p, true
		}
	}
	return RetentionPolicy{}, false
}

func (c *Catalog) validate() error {
	if len(c.Roles) == 0 {
		return errors.New("catalog: at least one role is required")
	}
	roles := map[string]bool{}
	for _, r := range c.Roles {
		key := strings.ToLower(r.Name)
		if r.Name == "" || roles[key] {
			return fmt.Errorf("catalog: empty or duplicated role '%s'", r.Name)
		}
		roles[key] = true
	}

	ids := map[uint64]bool{}
	names := map[string]bool{}
	for _, u := range c.Users {
		if u.ID == 0 || ids[u.ID] {
			return fmt.Errorf("catalog: user '%s' has an empty or duplicated id", u.Name)
		}
		if u.Name == "" || names[u.Name] {
			return fmt.Errorf("catalog: empty or duplicated user name '%s'", u.Name)
		}
		if !roles[strings.ToLower(u.Role)] {
			return fmt.Errorf("catalog: user '%s' has unknown role '%s'", u.Name, u.Role)
		}
		ids[u.ID] = true
		names[u.Name] = true
	}

	for _, t := range c.Templates {
		if t.Name == "" || len(t.Steps) == 0 {
			return fmt.Errorf("catalog: template '%s' must have a name and at least one step", t.Name)
		}
	}
	return nil
}

const defaultCatalogYAML = `
roles:
  - {name: Admin, level: 10, approvalCapable: true}
  - {name: Director, level: 8, approvalCapable: true}
  - {name: Department Manager, level: 7, approvalCapable: true}
  - {name: Department Lead, level: 6, approvalCapable: true}
  - {name: Approver, level: 5, approvalCapable: true}
  - {name: Reviewer, level: 4, approvalCapable: true}
  - {name: Contributor, level: 2, approvalCapable: false}
  - {name: Viewer, level: 1, approvalCapable: false}

documentTypes: [Policy, Procedure, Contract, Invoice, PO, Drawing, Other]
departments: [Shared Services, HR, Finance, Procurement, IT, Operations, Legal, Sales, Marketing, Engineering]
sensitivities: [Public, Internal, Confidential, Restricted]

retentionPolicies:
  - {name: Business record (7y), years: 7}
  - {name: Contract life + 6y, years: 6}
  - {name: Finance (10y), years: 10}
  - {name: Until superseded, years: 0}
  - {name: Custom, years: -1}

users:
  - {id: 1001, name: Admin User, email: admin@example.com, role: Admin, department: Shared Services}
  - {id: 1002, name: Aisha Approver, email: aisha@example.com, role: Approver, department: Shared Services}
  - {id: 1003, name: Omar Contributor, email: omar@example.com, role: Contributor, department: Engineering}
  - {id: 1004, name: Vera Viewer, email: vera@example.com, role: Viewer, department: Shared Services}
  - {id: 1005, name: Engineering Lead, email: englead@example.com, role: Department Lead, department: Engineering}
  - {id: 1006, name: QA Reviewer, email: qarev@example.com, role: Reviewer, department: Engineering}
  - {id: 1007, name: Engineering Manager, email: engmgr@example.com, role: Department Manager, department: Engineering}
  - {id: 1008, name: Legal Counsel, email: legal@example.com, role: Approver, department: Legal}
  - {id: 1009, name: Procurement Lead, email: proclead@example.com, role: Department Lead, department: Procurement}
  - {id: 1010, name: Procurement Manager, email: procmgr@example.com, role: Department Manager, department: Procurement}
  - {id: 1011, name: Department Owner, email: owner@example.com, role: Department Manager, department: Shared Services}
  - {id: 1012, name: HR Approver, email: hrappr@example.com, role: Approver, department: HR}
  - {id: 1013, name: Diana Director, email: director@example.com, role: Director, department: Operations}

templates:
  - name: Engineering Drawing
    description: Drawing release through engineering lead, QA and engineering manager
    trigger: {documentTypes: [Drawing], departments: [Engineering]}
    steps:
      - {name: Lead review, kind: review, assigneeKind: user, assigneeValue: Engineering Lead, slaHours: 48}
      - {name: QA verification, kind: verify, assigneeKind: user, assigneeValue: QA Reviewer, slaHours: 48}
      - {name: Manager approval, kind: approve, assigneeKind: user, assigneeValue: Engineering Manager, slaHours: 24}
  - name: Policy Update
    description: Policy change signed off by the department owner and HR
    trigger: {documentTypes: [Policy]}
    steps:
      - {name: Owner approval, kind: approve, assigneeKind: user, assigneeValue: Department Owner, slaHours: 72}
      - {name: HR approval, kind: approve, assigneeKind: user, assigneeValue: HR Approver, slaHours: 72}
  - name: Supplier Contract
    description: Supplier contract routed through procurement and legal
    trigger: {documentTypes: [Contract], departments: [Procurement]}
    steps:
      - {name: Procurement review, kind: review, assigneeKind: user, assigneeValue: Procurement Lead, slaHours: 48}
      - {name: Legal review, kind: review, assigneeKind: user, assigneeValue: Legal Counsel, slaHours: 72}
      - {name: Procurement sign-off, kind: sign, assigneeKind: user, assigneeValue: Procurement Manager, slaHours: 24}
  - name: Standard Review
    description: Department lead review followed by department manager approval
    steps:
      - {name: Lead review, kind: review, assigneeKind: role, assigneeValue: Department Lead, slaHours: 48}
      - {name: Manager approval, kind: approve, assigneeKind: role, assigneeValue: Department Manager, slaHours: 48}
`
