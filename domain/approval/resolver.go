package approval

import (
	"docflow/account"
	"docflow/authority"
	"docflow/bizerror"
	"docflow/config"
	"docflow/domain/flow"
	"errors"
	"sort"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// assignment is the outcome of resolving a step rule, a zero AssigneeID means unresolved.
type assignment struct {
	AssigneeID   types.ID
	RequiredRole string
}

type assigneeResolver struct {
	catalog   *config.Catalog
	ranking   *authority.Ranking
	directory account.Directory
}

func (r *assigneeResolver) resolve(db *gorm.DB, kind, value string) (assignment, error) {
	switch kind {
	case flow.AssigneeUser:
		return r.resolveUser(db, value)
	case flow.AssigneeRole:
		return r.resolveRole(db, value)
	case flow.AssigneeDepartment:
		return r.resolveDepartment(db, value)
	}
	return assignment{}, nil
}

func (r *assigneeResolver) resolveUser(db *gorm.DB, value string) (assignment, error) {
	u, err := r.directory.FindByName(db, value)
	if errors.Is(err, bizerror.ErrNotFound) {
		id, parseErr := types.ParseID(strings.TrimSpace(value))
		if parseErr != nil {
			return assignment{}, nil
		}
		u, err = r.directory.FindByID(db, id)
	}
	if errors.Is(err, bizerror.ErrNotFound) {
		return assignment{}, nil
	}
	if err != nil {
		return assignment{}, err
	}
	return assignment{AssigneeID: u.ID, RequiredRole: u.Role}, nil
}

// resolveRole picks the first holder of the role, or else the lowest ranked user who may act on its behalf.
// Roles missing from the catalog have no substitutes.
func (r *assigneeResolver) resolveRole(db *gorm.DB, value string) (assignment, error) {
	required := value
	role, known := r.catalog.FindRole(value)
	if known {
		required = role.Name
	}
	result := assignment{RequiredRole: required}

	users, err := r.directory.FindByRole(db, required)
	if err != nil {
		return result, err
	}
	if len(users) > 0 {
		result.AssigneeID = users[0].ID
		return result, nil
	}
	if !known {
		return result, nil
	}

	substitutes := []config.Role{}
	for _, candidate := range r.catalog.Roles {
		if !strings.EqualFold(candidate.Name, required) && r.ranking.CanActOnBehalf(candidate.Name, required) {
			substitutes = append(substitutes, candidate)
		}
	}
	sort.SliceStable(substitutes, func(i, j int) bool {
		return r.ranking.EffectiveLevel(substitutes[i].Name) < r.ranking.EffectiveLevel(substitutes[j].Name)
	})
	for _, substitute := range substitutes {
		users, err := r.directory.FindByRole(db, substitute.Name)
		if err != nil {
			return result, err
		}
		if len(users) > 0 {
			result.AssigneeID = users[0].ID
			return result, nil
		}
	}
	return result, nil
}

// resolveDepartment picks the approval capable member with the highest authority, lowest id on ties.
func (r *assigneeResolver) resolveDepartment(db *gorm.DB, value string) (assignment, error) {
	users, err := r.directory.FindByDepartment(db, value)
	if err != nil {
		return assignment{}, err
	}
	var chosen *account.User
	best := 0
	for i := range users {
		level := r.ranking.EffectiveLevel(users[i].Role)
		if level == 0 {
			continue
		}
		if chosen == nil || level > best || (level == best && users[i].ID < chosen.ID) {
			chosen, best = &users[i], level
		}
	}
	if chosen == nil {
		return assignment{}, nil
	}
	return assignment{AssigneeID: chosen.ID, RequiredRole: chosen.Role}, nil
}

// authorize checks the actor against the resolved assignee, or the delegation rule for role and department steps.
func (r *assigneeResolver) authorize(actorID types.ID, actorRole string, step *StepExecution) error {
	if !step.unresolved() && actorID == step.AssigneeID {
		return nil
	}
	if step.AssigneeKind != flow.AssigneeUser && step.RequiredRole != "" &&
		r.ranking.CanActOnBehalf(actorRole, step.RequiredRole) {
		return nil
	}
	return bizerror.ErrUnauthorized
}

func ruleOf(kind, value string) string {
	return kind + ":" + value
}
