package authority

import (
	"docflow/config"
	"strings"
)

// Ranking answers authority questions over the catalog role table.
type Ranking struct {
	levels  map[string]int
	capable map[string]bool
}

func NewRanking(catalog *config.Catalog) *Ranking {
	r := &Ranking{levels: map[string]int{}, capable: map[string]bool{}}
	for _, role := range catalog.Roles {
		key := strings.ToLower(role.Name)
		r.levels[key] = role.Level
		r.capable[key] = role.ApprovalCapable
	}
	return r
}

// Level returns the numeric authority of role, 0 for unknown roles.
func (r *Ranking) Level(role string) int {
	return r.levels[strings.ToLower(role)]
}

// Known reports whether the catalog defines role.
func (r *Ranking) Known(role string) bool {
	_, ok := r.levels[strings.ToLower(role)]
	return ok
}

func (r *Ranking) ApprovalCapable(role string) bool {
	return r.capable[strings.ToLower(role)]
}

// EffectiveLevel is the level used for delegation, roles outside the approval-capable set count as 0.
func (r *Ranking) EffectiveLevel(role string) int {
	if !r.ApprovalCapable(role) {
		return 0
	}
	return r.Level(role)
}

// CanActOnBehalf reports whether a holder of actorRole may decide a step requiring requiredRole.
// Nobody acts on behalf of a role the catalog does not define.
func (r *Ranking) CanActOnBehalf(actorRole, requiredRole string) bool {
	actorLevel := r.EffectiveLevel(actorRole)
	if actorLevel == 0 || !r.Known(requiredRole) {
		return false
	}
	return actorLevel >= r.Level(requiredRole)
}
