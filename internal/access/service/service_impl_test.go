package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/access/domain"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/energyscope/internal/catalog/service"
	"github.com/smallbiznis/energyscope/internal/clock"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	hierarchyservice "github.com/smallbiznis/energyscope/internal/hierarchy/service"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	svc       domain.Service
	hierarchy hierarchydomain.Service
	catalog   catalogdomain.Service
	org       *hierarchydomain.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&hierarchydomain.Organization{},
		&hierarchydomain.Subdivision{},
		&hierarchydomain.Subsidiary{},
		&hierarchydomain.Site{},
		&catalogdomain.Issue{},
		&catalogdomain.Criterion{},
		&catalogdomain.Indicator{},
		&catalogdomain.Process{},
		&catalogdomain.ProcessIndicator{},
		&catalogdomain.ProcessCriterion{},
		&domain.UserAssignment{},
		&domain.UserProcess{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))

	hierarchy := hierarchyservice.NewService(hierarchyservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk, Store: repository.Config{},
	})
	catalog := catalogservice.NewService(catalogservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk, Store: repository.Config{},
	})

	report, err := hierarchy.SetupHierarchy(ctx, hierarchydomain.SetupHierarchyRequest{
		Organization: hierarchydomain.CreateOrganizationRequest{Name: "Acme"},
		Subdivisions: []hierarchydomain.AddSubdivisionRequest{{Name: "D"}},
		Subsidiaries: []hierarchydomain.AddSubsidiaryRequest{
			{SubdivisionName: "D", Name: "F"},
			{SubdivisionName: "D", Name: "G"},
		},
		Sites: []hierarchydomain.AddSiteRequest{
			{SubsidiaryName: "F", Name: "F-1"},
			{SubsidiaryName: "F", Name: "F-2"},
			{SubsidiaryName: "G", Name: "G-1"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	org, err := hierarchy.GetOrganization(ctx, "Acme")
	require.NoError(t, err)

	for _, code := range []string{"IND1", "IND2", "IND3"} {
		_, err := catalog.UpsertIndicator(ctx, catalogdomain.UpsertIndicatorRequest{Code: code, Name: code, Unit: "kWh"})
		require.NoError(t, err)
	}
	for code, indicators := range map[string][]string{"A": {"IND1"}, "B": {"IND2"}, "C": {"IND3"}} {
		_, err := catalog.UpsertProcess(ctx, catalogdomain.UpsertProcessRequest{Code: code, Name: "Process " + code, Indicators: indicators})
		require.NoError(t, err)
	}

	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)

	svc := NewService(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Store:     repository.Config{},
		Enforcer:  enforcer,
		Hierarchy: hierarchy,
		Catalog:   catalog,
	})

	return &fixture{db: conn, svc: svc, hierarchy: hierarchy, catalog: catalog, org: org}
}

func (f *fixture) assign(t *testing.T, email string, role domain.Role, level hierarchydomain.Level, entity string, processes ...string) *domain.Assignment {
	t.Helper()
	a, err := f.svc.SetAssignment(context.Background(), domain.SetAssignmentRequest{
		Email:      email,
		OrgID:      f.org.ID,
		Role:       role,
		Level:      level,
		EntityName: entity,
		Processes:  processes,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) scope(t *testing.T, level hierarchydomain.Level, name string) hierarchydomain.Scope {
	t.Helper()
	scope, err := f.hierarchy.ScopeOf(context.Background(), f.org.ID, level, name)
	require.NoError(t, err)
	return scope
}

func TestSetAssignmentReplacesProcesses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.assign(t, "Ann@Acme.io", domain.RoleContributor, hierarchydomain.LevelSite, "F-1", "A", "B")
	a := f.assign(t, "ann@acme.io", domain.RoleContributor, hierarchydomain.LevelSite, "F-1", "B", "C", "C")
	assert.Equal(t, []string{"B", "C"}, a.Processes)

	got, err := f.svc.GetAssignment(ctx, "ANN@acme.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, got.Processes)
	assert.Equal(t, "site:F-1", got.Scope.Key())
	assert.NotZero(t, got.Scope.SubsidiaryID)

	var rows int64
	require.NoError(t, f.db.Model(&domain.UserProcess{}).Where("user_email = ?", "ann@acme.io").Count(&rows).Error)
	assert.EqualValues(t, 2, rows)

	var assignments int64
	require.NoError(t, f.db.Model(&domain.UserAssignment{}).Count(&assignments).Error)
	assert.EqualValues(t, 1, assignments)
}

func TestSetAssignmentRoleChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.assign(t, "ann@acme.io", domain.RoleContributor, hierarchydomain.LevelSite, "F-1", "A")
	a := f.assign(t, "ann@acme.io", domain.RoleValidator, hierarchydomain.LevelSubsidiary, "F", "A")

	assert.NoError(t, f.svc.Authorize(ctx, *a, domain.ActionValidate))

	got, err := f.svc.GetAssignment(ctx, "ann@acme.io")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleValidator, got.Role)
	assert.Equal(t, "subsidiary:F", got.Scope.Key())
}

func TestSetAssignmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.SetAssignmentRequest
		want error
	}{
		{"missing email", domain.SetAssignmentRequest{OrgID: f.org.ID, Role: domain.RoleContributor, Level: hierarchydomain.LevelSite, EntityName: "F-1"}, domain.ErrInvalidEmail},
		{"unknown role", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: "owner", Level: hierarchydomain.LevelSite, EntityName: "F-1"}, domain.ErrInvalidRole},
		{"admin below group", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleAdmin, Level: hierarchydomain.LevelSite, EntityName: "F-1"}, domain.ErrAdminLevel},
		{"admin with processes", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleAdmin, Level: hierarchydomain.LevelGroup, Processes: []string{"A"}}, domain.ErrAdminProcesses},
		{"unknown process", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleContributor, Level: hierarchydomain.LevelSite, EntityName: "F-1", Processes: []string{"GHOST"}}, catalogdomain.ErrProcessNotFound},
		{"unknown site", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleContributor, Level: hierarchydomain.LevelSite, EntityName: "Nowhere", Processes: []string{"A"}}, hierarchydomain.ErrSiteNotFound},
		{"missing entity", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleValidator, Level: hierarchydomain.LevelSubsidiary, Processes: []string{"A"}}, hierarchydomain.ErrEntityRequired},
		{"contributor without processes", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleContributor, Level: hierarchydomain.LevelSite, EntityName: "F-1"}, domain.ErrProcessesRequired},
		{"validator without processes", domain.SetAssignmentRequest{Email: "x@acme.io", OrgID: f.org.ID, Role: domain.RoleValidator, Level: hierarchydomain.LevelGroup, Processes: []string{" "}}, domain.ErrProcessesRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SetAssignment(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.GetAssignment(ctx, "x@acme.io")
	assert.ErrorIs(t, err, domain.ErrAssignmentNotFound)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCanAct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contributor := f.assign(t, "ann@acme.io", domain.RoleContributor, hierarchydomain.LevelSite, "F-1", "A")
	validator := f.assign(t, "val@acme.io", domain.RoleValidator, hierarchydomain.LevelSubsidiary, "F", "A")
	admin := f.assign(t, "boss@acme.io", domain.RoleAdmin, hierarchydomain.LevelGroup, "")

	f1 := f.scope(t, hierarchydomain.LevelSite, "F-1")
	f2 := f.scope(t, hierarchydomain.LevelSite, "F-2")
	g1 := f.scope(t, hierarchydomain.LevelSite, "G-1")
	sub := f.scope(t, hierarchydomain.LevelSubsidiary, "F")

	assert.NoError(t, f.svc.CanAct(ctx, *contributor, domain.ActionSubmit, f1))
	assert.ErrorIs(t, f.svc.CanAct(ctx, *contributor, domain.ActionSubmit, f2), domain.ErrScopeMismatch)
	assert.ErrorIs(t, f.svc.CanAct(ctx, *contributor, domain.ActionValidate, f1), domain.ErrRoleNotAllowed)
	assert.ErrorIs(t, f.svc.CanAct(ctx, *contributor, domain.ActionReject, f1), errs.ErrForbidden)

	assert.NoError(t, f.svc.CanAct(ctx, *validator, domain.ActionValidate, f1))
	assert.NoError(t, f.svc.CanAct(ctx, *validator, domain.ActionReject, f2))
	assert.NoError(t, f.svc.CanAct(ctx, *validator, domain.ActionValidate, sub))
	assert.ErrorIs(t, f.svc.CanAct(ctx, *validator, domain.ActionValidate, g1), domain.ErrOutsideScope)
	assert.NoError(t, f.svc.CanAct(ctx, *validator, domain.ActionCreate, sub))
	assert.ErrorIs(t, f.svc.CanAct(ctx, *validator, domain.ActionCreate, f1), domain.ErrScopeMismatch)

	assert.NoError(t, f.svc.CanAct(ctx, *admin, domain.ActionValidate, g1))
	other := g1
	other.OrgID = f.org.ID + 1
	assert.ErrorIs(t, f.svc.CanAct(ctx, *admin, domain.ActionValidate, other), domain.ErrOutsideScope)
}

func TestVisibleValuesUsesAssignedProcesses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contributor := f.assign(t, "ann@acme.io", domain.RoleContributor, hierarchydomain.LevelSite, "F-1", "A", "B")
	vis, err := f.svc.VisibleValues(ctx, *contributor)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"IND1", "IND2"}, vis.IndicatorCodes)
	assert.Equal(t, "ann@acme.io", vis.Submitter)

	bare := domain.Assignment{UserEmail: "bob@acme.io", OrgID: f.org.ID, Role: domain.RoleContributor, Scope: f.scope(t, hierarchydomain.LevelSite, "F-2")}
	vis, err = f.svc.VisibleValues(ctx, bare)
	require.NoError(t, err)
	assert.NotNil(t, vis.IndicatorCodes)
	assert.Empty(t, vis.IndicatorCodes)

	admin := f.assign(t, "boss@acme.io", domain.RoleAdmin, hierarchydomain.LevelGroup, "")
	vis, err = f.svc.VisibleValues(ctx, *admin)
	require.NoError(t, err)
	assert.Nil(t, vis.IndicatorCodes)
	assert.Equal(t, domain.ScopeOrganization, vis.Rule)
}

func TestLevelSelector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	validator := f.assign(t, "val@acme.io", domain.RoleValidator, hierarchydomain.LevelSubdivision, "D", "A")
	sel, err := f.svc.LevelSelector(ctx, *validator)
	require.NoError(t, err)
	assert.Equal(t, []hierarchydomain.Level{
		hierarchydomain.LevelSubdivision,
		hierarchydomain.LevelSubsidiary,
		hierarchydomain.LevelSite,
	}, sel.Levels)
	assert.Len(t, sel.Entities[hierarchydomain.LevelSite], 3)
}
