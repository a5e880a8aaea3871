package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/energyscope/internal/access/domain"
	accessservice "github.com/smallbiznis/energyscope/internal/access/service"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/energyscope/internal/catalog/service"
	"github.com/smallbiznis/energyscope/internal/clock"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	hierarchyservice "github.com/smallbiznis/energyscope/internal/hierarchy/service"
	"github.com/smallbiznis/energyscope/internal/migration"
	perioddomain "github.com/smallbiznis/energyscope/internal/period/domain"
	periodservice "github.com/smallbiznis/energyscope/internal/period/service"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const nordSetup = `
organization:
  name: Nord
  contact:
    city: Lyon
    country: FR
  subdivisions:
    - name: D
      location: South
  subsidiaries:
    - name: F
      subdivision: D
    - name: G
      subdivision: D
  sites:
    - name: F-1
      subsidiary: F
    - name: G-1
      subsidiary: G
catalog:
  issues:
    - code: ENV
      name: Environment
  criteria:
    - code: ENV-1
      name: Consumption
      issue: ENV
  indicators:
    - code: IND1
      name: Energy Use
      unit: kWh
      issue: ENV
      criterion: ENV-1
    - code: IND2
      name: Water Use
      unit: m3
  processes:
    - code: PROD
      name: Production
      indicators: [IND1, IND2]
      criteria: [ENV-1]
selection:
  sector: Manufacturing
  energyTypes: [electricity]
  standards: [ISO 50001]
  issues: [Environment]
  indicators: [Energy Use]
users:
  - email: Ann@Nord.example
    role: contributor
    level: site
    entity: F-1
    processes: [PROD]
  - email: root@nord.example
    role: admin
    level: group
periods:
  - year: 2025
    type: quarter
    closed: [1]
`

type harness struct {
	db        *gorm.DB
	runner    *Runner
	hierarchy hierarchydomain.Service
	catalog   catalogdomain.Service
	access    accessdomain.Service
	periods   perioddomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(migration.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	store := repository.Config{}

	hierarchy := hierarchyservice.NewService(hierarchyservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Store: store})
	catalog := catalogservice.NewService(catalogservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Store: store})
	periods := periodservice.NewService(periodservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Store: store})
	enforcer, err := accessservice.NewMemoryEnforcer()
	require.NoError(t, err)
	access := accessservice.NewService(accessservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Store: store,
		Enforcer: enforcer, Hierarchy: hierarchy, Catalog: catalog,
	})

	return &harness{
		db:        conn,
		runner:    NewRunner(Params{Log: log, Hierarchy: hierarchy, Catalog: catalog, Access: access, Periods: periods}),
		hierarchy: hierarchy,
		catalog:   catalog,
		access:    access,
		periods:   periods,
	}
}

func writeSetup(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "setup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	file, err := Load(writeSetup(t, nordSetup))
	require.NoError(t, err)

	assert.Equal(t, "Nord", file.Organization.Name)
	assert.Equal(t, "Lyon", file.Organization.Contact.City)
	assert.Len(t, file.Organization.Sites, 2)
	assert.Equal(t, "F", file.Organization.Sites[0].Subsidiary)
	assert.Equal(t, []string{"IND1", "IND2"}, file.Catalog.Processes[0].Indicators)
	require.NotNil(t, file.Selection)
	assert.Equal(t, []string{"electricity"}, file.Selection.EnergyTypes)
	assert.Equal(t, []int{1}, file.Periods[0].Closed)
}

func TestLoadRequiresOrganization(t *testing.T) {
	_, err := Load(writeSetup(t, "catalog:\n  issues: []\n"))
	assert.ErrorIs(t, err, ErrMissingOrganization)

	_, err = Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	report, err := h.runner.ApplyFile(ctx, writeSetup(t, nordSetup))
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.NotZero(t, report.OrgID)

	structure, err := h.hierarchy.Structure(ctx, report.OrgID)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", structure.Organization.Contact.City)
	assert.Len(t, structure.Subdivisions, 1)
	assert.Len(t, structure.Subsidiaries, 2)
	assert.Len(t, structure.Sites, 2)

	codes, err := h.catalog.IndicatorCodes(ctx, []string{"PROD"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"IND1", "IND2"}, codes)

	selection, err := h.catalog.LatestSelection(ctx, report.OrgID)
	require.NoError(t, err)
	require.NotNil(t, selection)
	assert.Equal(t, "Manufacturing", selection.Sector)

	ann, err := h.access.GetAssignment(ctx, "ann@nord.example")
	require.NoError(t, err)
	assert.Equal(t, accessdomain.RoleContributor, ann.Role)
	assert.Equal(t, hierarchydomain.LevelSite, ann.Scope.Level)
	assert.Equal(t, "F-1", ann.Scope.Name)
	assert.Equal(t, []string{"PROD"}, ann.Processes)

	admin, err := h.access.GetAssignment(ctx, "root@nord.example")
	require.NoError(t, err)
	assert.Equal(t, accessdomain.RoleAdmin, admin.Role)

	periods, err := h.periods.ListPeriods(ctx, report.OrgID)
	require.NoError(t, err)
	require.Len(t, periods, 4)
	for _, p := range periods {
		if p.PeriodNumber == 1 {
			assert.Equal(t, perioddomain.StatusClosed, p.Status)
		} else {
			assert.Equal(t, perioddomain.StatusOpen, p.Status)
		}
	}
}

func TestApplyTwiceIsStable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := writeSetup(t, nordSetup)

	first, err := h.runner.ApplyFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Err())

	second, err := h.runner.ApplyFile(ctx, path)
	require.NoError(t, err)
	assert.NoError(t, second.Err())
	assert.Equal(t, first.OrgID, second.OrgID)
	assert.Len(t, second.Rows, len(first.Rows))

	var selections int64
	require.NoError(t, h.db.Model(&catalogdomain.OrganizationSelection{}).Count(&selections).Error)
	assert.EqualValues(t, 1, selections)

	var periods int64
	require.NoError(t, h.db.Model(&perioddomain.CollectionPeriod{}).Count(&periods).Error)
	assert.EqualValues(t, 4, periods)
}

func TestApplyReportsFailedRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	file := &File{
		Organization: Organization{
			Name:  "Acme",
			Sites: []Site{{Name: "HQ"}, {Name: "Lost", Subsidiary: "Nowhere"}},
		},
		Catalog: Catalog{
			Indicators: []Indicator{{Code: "IND1", Name: "Energy Use"}, {Code: "", Name: "No Code"}},
			Processes:  []Process{{Code: "PROD", Name: "Production", Indicators: []string{"IND1"}}},
		},
		Users: []User{
			{Email: "bob@acme.example", Role: "contributor", Level: "site", Entity: "HQ", Processes: []string{"PROD"}},
			{Email: "eve@acme.example", Role: "owner", Level: "site", Entity: "HQ"},
			{Email: "zed@acme.example", Role: "contributor", Level: "site", Entity: "HQ", Processes: []string{"NOPE"}},
		},
		Periods: []Periods{{Year: 2025, Type: "fortnight"}},
	}

	report, err := h.runner.Apply(ctx, file)
	require.NoError(t, err)

	failed := map[string]string{}
	for _, row := range report.Failed() {
		failed[row.Name] = row.Kind
	}
	assert.Equal(t, map[string]string{
		"Lost":             string(hierarchydomain.LevelSite),
		"":                 KindIndicator,
		"eve@acme.example": KindAssignment,
		"zed@acme.example": KindAssignment,
		"2025:fortnight":   KindPeriod,
	}, failed)
	assert.Error(t, report.Err())

	bob, err := h.access.GetAssignment(ctx, "bob@acme.example")
	require.NoError(t, err)
	assert.Equal(t, "HQ", bob.Scope.Name)
}

func TestApplyRequiresOrganization(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Apply(context.Background(), &File{})
	assert.ErrorIs(t, err, ErrMissingOrganization)

	_, err = h.runner.Apply(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingOrganization)
}
