package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Organization{},
		&domain.Subdivision{},
		&domain.Subsidiary{},
		&domain.Site{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)),
		Store: repository.Config{},
	})
}

func TestCreateOrganizationDuplicateName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: " Acme Energy "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Energy", org.Name)
	assert.Equal(t, "acme-energy", org.Slug)

	_, err = svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: "Acme Energy"})
	assert.ErrorIs(t, err, errs.ErrDuplicate)
	assert.ErrorIs(t, err, domain.ErrOrganizationExists)

	_, err = svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: "  "})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSimpleOrganization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	_, err = svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, Name: "Acme-HQ"})
	require.NoError(t, err)

	composite, err := svc.IsComposite(ctx, org.ID)
	require.NoError(t, err)
	assert.False(t, composite)

	subsidiaries, err := svc.ResolveScopeEntities(ctx, org.ID, domain.LevelSubsidiary)
	require.NoError(t, err)
	assert.Empty(t, subsidiaries)

	group, err := svc.ResolveScopeEntities(ctx, org.ID, domain.LevelGroup)
	require.NoError(t, err)
	assert.Empty(t, group)

	sites, err := svc.ResolveScopeEntities(ctx, org.ID, domain.LevelSite)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Acme-HQ", sites[0].Name)

	scope, err := svc.ScopeOf(ctx, org.ID, domain.LevelGroup, "")
	require.NoError(t, err)
	assert.Equal(t, "group:Acme", scope.Key())
}

func TestCompositeScopeChain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: "Holding"})
	require.NoError(t, err)
	subdivision, err := svc.AddSubdivision(ctx, domain.AddSubdivisionRequest{OrgID: org.ID, Name: "Power"})
	require.NoError(t, err)
	subsidiary, err := svc.AddSubsidiary(ctx, domain.AddSubsidiaryRequest{OrgID: org.ID, SubdivisionName: "Power", Name: "F"})
	require.NoError(t, err)
	site, err := svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, SubsidiaryName: "F", Name: "F-1"})
	require.NoError(t, err)

	assert.Equal(t, subdivision.ID, site.SubdivisionID, "site inherits the subsidiary's subdivision")

	composite, err := svc.IsComposite(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, composite)

	siteScope, err := svc.ScopeOf(ctx, org.ID, domain.LevelSite, "F-1")
	require.NoError(t, err)
	assert.Equal(t, subsidiary.ID, siteScope.SubsidiaryID)
	assert.Equal(t, subdivision.ID, siteScope.SubdivisionID)

	subsidiaryScope, err := svc.ScopeOf(ctx, org.ID, domain.LevelSubsidiary, "F")
	require.NoError(t, err)
	assert.True(t, domain.Contains(subsidiaryScope, siteScope))

	_, err = svc.ScopeOf(ctx, org.ID, domain.LevelSite, "")
	assert.ErrorIs(t, err, domain.ErrEntityRequired)

	_, err = svc.ScopeOf(ctx, org.ID, domain.LevelSubsidiary, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, SubsidiaryName: "nope", Name: "F-2"})
	assert.ErrorIs(t, err, domain.ErrSubsidiaryNotFound)

	_, err = svc.AddSubsidiary(ctx, domain.AddSubsidiaryRequest{OrgID: org.ID, Name: "H"})
	require.NoError(t, err)
	_, err = svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, SubsidiaryName: "H", SubdivisionName: "Power", Name: "H-1"})
	assert.ErrorIs(t, err, domain.ErrParentMismatch, "H has no subdivision")

	_, err = svc.AddSubdivision(ctx, domain.AddSubdivisionRequest{OrgID: org.ID, Name: "Heat"})
	require.NoError(t, err)
	_, err = svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, SubsidiaryName: "F", SubdivisionName: "Heat", Name: "F-3"})
	assert.ErrorIs(t, err, domain.ErrParentMismatch)

	direct, err := svc.AddSite(ctx, domain.AddSiteRequest{OrgID: org.ID, SubsidiaryName: "H", Name: "H-1"})
	require.NoError(t, err)
	assert.Zero(t, direct.SubdivisionID)

	powerScope, err := svc.ScopeOf(ctx, org.ID, domain.LevelSubdivision, "Power")
	require.NoError(t, err)
	directScope, err := svc.ScopeOf(ctx, org.ID, domain.LevelSite, "H-1")
	require.NoError(t, err)
	assert.False(t, domain.Contains(powerScope, directScope))
}

func TestSetupHierarchyBestEffort(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.SetupHierarchy(ctx, domain.SetupHierarchyRequest{
		Organization: domain.CreateOrganizationRequest{Name: "Acme"},
		Subdivisions: []domain.AddSubdivisionRequest{{Name: "Power"}},
		Subsidiaries: []domain.AddSubsidiaryRequest{
			{Name: "F", SubdivisionName: "Power"},
			{Name: "G", SubdivisionName: "Unknown"},
		},
		Sites: []domain.AddSiteRequest{
			{Name: "F-1", SubsidiaryName: "F"},
			{Name: "F-1", SubsidiaryName: "F"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, report.Rows, 6)

	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "G", failed[0].Name)
	assert.ErrorIs(t, failed[0].Err, errs.ErrNotFound)
	assert.ErrorIs(t, failed[1].Err, errs.ErrDuplicate)
	assert.Error(t, report.Err())

	structure, err := svc.Structure(ctx, report.OrgID)
	require.NoError(t, err)
	assert.Len(t, structure.Subsidiaries, 1)
	assert.Len(t, structure.Sites, 1)

	again, err := svc.SetupHierarchy(ctx, domain.SetupHierarchyRequest{
		Organization: domain.CreateOrganizationRequest{Name: "Acme"},
		Sites:        []domain.AddSiteRequest{{Name: "F-2", SubsidiaryName: "F"}},
	})
	require.NoError(t, err)
	assert.Equal(t, report.OrgID, again.OrgID)
	assert.ErrorIs(t, again.Rows[0].Err, domain.ErrOrganizationExists)
	assert.NoError(t, again.Rows[1].Err)
}

func TestListOrganizations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	orgs, err := svc.ListOrganizations(ctx)
	require.NoError(t, err)
	assert.Empty(t, orgs)

	for _, name := range []string{"Nord", "Acme"} {
		_, err := svc.CreateOrganization(ctx, domain.CreateOrganizationRequest{Name: name})
		require.NoError(t, err)
	}

	orgs, err = svc.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Acme", orgs[0].Name)
	assert.Equal(t, "Nord", orgs[1].Name)
}
