package domain

import hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"

// Selector describes which hierarchy levels and entities a user may pick
// when entering or browsing values.
type Selector struct {
	Levels   []hierarchydomain.Level
	Default  hierarchydomain.Level
	Fixed    bool
	Entities map[hierarchydomain.Level][]hierarchydomain.Entity
}

// RequiresEntity reports whether a level needs an entity choice before submission.
func (s Selector) RequiresEntity(level hierarchydomain.Level) bool {
	return level != hierarchydomain.LevelGroup
}

// NewSelector computes the selector from the organization structure.
// Contributors are fixed to their own scope. Validators may pick their level
// or any finer level holding entities inside their scope. Admins start at
// group and may pick any level holding entities.
func NewSelector(a Assignment, structure hierarchydomain.Structure) Selector {
	entities := scopedEntities(a, structure)

	sel := Selector{
		Default:  a.Scope.Level,
		Entities: map[hierarchydomain.Level][]hierarchydomain.Entity{},
	}

	if a.Role == RoleContributor {
		sel.Fixed = true
		sel.Levels = []hierarchydomain.Level{a.Scope.Level}
		if a.Scope.Level != hierarchydomain.LevelGroup {
			sel.Entities[a.Scope.Level] = []hierarchydomain.Entity{{ID: a.Scope.EntityID(), Name: a.Scope.Name, Level: a.Scope.Level}}
		}
		return sel
	}

	top := a.Scope.Level
	if a.Role == RoleAdmin {
		top = hierarchydomain.LevelGroup
		sel.Default = hierarchydomain.LevelGroup
	}

	for i := len(hierarchydomain.Levels) - 1; i >= 0; i-- {
		level := hierarchydomain.Levels[i]
		if level.Coarser(top) {
			continue
		}
		if level == hierarchydomain.LevelGroup {
			sel.Levels = append(sel.Levels, level)
			continue
		}
		found := entities[level]
		if len(found) == 0 {
			continue
		}
		sel.Levels = append(sel.Levels, level)
		sel.Entities[level] = found
	}
	return sel
}

func scopedEntities(a Assignment, structure hierarchydomain.Structure) map[hierarchydomain.Level][]hierarchydomain.Entity {
	out := map[hierarchydomain.Level][]hierarchydomain.Entity{}
	orgID := structure.Organization.ID
	add := func(scope hierarchydomain.Scope) {
		if a.Role != RoleAdmin && !hierarchydomain.Contains(a.Scope, scope) {
			return
		}
		out[scope.Level] = append(out[scope.Level], hierarchydomain.Entity{ID: scope.EntityID(), Name: scope.Name, Level: scope.Level})
	}

	for _, d := range structure.Subdivisions {
		add(hierarchydomain.Scope{Level: hierarchydomain.LevelSubdivision, Name: d.Name, OrgID: orgID, SubdivisionID: d.ID})
	}
	for _, f := range structure.Subsidiaries {
		add(hierarchydomain.Scope{Level: hierarchydomain.LevelSubsidiary, Name: f.Name, OrgID: orgID, SubdivisionID: f.SubdivisionID, SubsidiaryID: f.ID})
	}
	for _, s := range structure.Sites {
		add(hierarchydomain.Scope{Level: hierarchydomain.LevelSite, Name: s.Name, OrgID: orgID, SubdivisionID: s.SubdivisionID, SubsidiaryID: s.SubsidiaryID, SiteID: s.ID})
	}
	return out
}
