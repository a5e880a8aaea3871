package domain

import (
	"testing"

	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	add, remove := Diff([]string{"A", "B"}, []string{"B", "C", "C"})
	assert.Equal(t, []string{"C"}, add)
	assert.Equal(t, []string{"A"}, remove)

	add, remove = Diff(nil, nil)
	assert.Empty(t, add)
	assert.Empty(t, remove)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Validator")
	assert.NoError(t, err)
	assert.Equal(t, RoleValidator, role)
	assert.Equal(t, "role:validator", role.Subject())

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestHasProcess(t *testing.T) {
	a := Assignment{Role: RoleContributor, Processes: []string{"PROD"}}
	assert.True(t, a.HasProcess("PROD"))
	assert.False(t, a.HasProcess("LOG"))
	assert.True(t, Assignment{Role: RoleAdmin}.HasProcess("LOG"))
}

func TestNewSelector(t *testing.T) {
	structure := hierarchydomain.Structure{
		Organization: hierarchydomain.Organization{ID: 1, Name: "Acme"},
		Subdivisions: []hierarchydomain.Subdivision{{ID: 10, OrgID: 1, Name: "D"}},
		Subsidiaries: []hierarchydomain.Subsidiary{
			{ID: 20, OrgID: 1, SubdivisionID: 10, Name: "F"},
			{ID: 21, OrgID: 1, SubdivisionID: 10, Name: "G"},
		},
		Sites: []hierarchydomain.Site{
			{ID: 30, OrgID: 1, SubdivisionID: 10, SubsidiaryID: 20, Name: "F-1"},
			{ID: 32, OrgID: 1, SubdivisionID: 10, SubsidiaryID: 21, Name: "G-1"},
		},
	}

	contributor := NewSelector(Assignment{Role: RoleContributor, OrgID: 1, Scope: scopeF1}, structure)
	assert.True(t, contributor.Fixed)
	assert.Equal(t, []hierarchydomain.Level{hierarchydomain.LevelSite}, contributor.Levels)
	assert.Equal(t, "F-1", contributor.Entities[hierarchydomain.LevelSite][0].Name)
	assert.True(t, contributor.RequiresEntity(hierarchydomain.LevelSite))

	validator := NewSelector(Assignment{Role: RoleValidator, OrgID: 1, Scope: scopeF}, structure)
	assert.False(t, validator.Fixed)
	assert.Equal(t, []hierarchydomain.Level{hierarchydomain.LevelSubsidiary, hierarchydomain.LevelSite}, validator.Levels)
	assert.Len(t, validator.Entities[hierarchydomain.LevelSubsidiary], 1)
	assert.Len(t, validator.Entities[hierarchydomain.LevelSite], 1, "only sites under F")

	admin := NewSelector(Assignment{Role: RoleAdmin, OrgID: 1, Scope: scopeGroup}, structure)
	assert.Equal(t, hierarchydomain.LevelGroup, admin.Default)
	assert.Equal(t, []hierarchydomain.Level{
		hierarchydomain.LevelGroup,
		hierarchydomain.LevelSubdivision,
		hierarchydomain.LevelSubsidiary,
		hierarchydomain.LevelSite,
	}, admin.Levels)
	assert.False(t, admin.RequiresEntity(hierarchydomain.LevelGroup))

	simple := hierarchydomain.Structure{
		Organization: hierarchydomain.Organization{ID: 1, Name: "Acme"},
		Sites:        []hierarchydomain.Site{{ID: 30, OrgID: 1, Name: "Acme-HQ"}},
	}
	simpleAdmin := NewSelector(Assignment{Role: RoleAdmin, OrgID: 1, Scope: scopeGroup}, simple)
	assert.Equal(t, []hierarchydomain.Level{hierarchydomain.LevelGroup, hierarchydomain.LevelSite}, simpleAdmin.Levels)
}
