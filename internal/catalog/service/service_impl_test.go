package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/catalog/domain"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const orgID = snowflake.ID(42)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Issue{},
		&domain.Criterion{},
		&domain.Indicator{},
		&domain.Process{},
		&domain.ProcessIndicator{},
		&domain.ProcessCriterion{},
		&domain.OrganizationSelection{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Store: repository.Config{},
	}), clk
}

func seedCatalog(t *testing.T, svc domain.Service) {
	t.Helper()
	ctx := context.Background()

	for _, ind := range []domain.UpsertIndicatorRequest{
		{Code: "IND1", Name: "Energy Use", Unit: "kWh"},
		{Code: "IND2", Name: "Water Use", Unit: "m3"},
		{Code: "IND3", Name: "Energy Use", Unit: "MWh"},
		{Code: "IND4", Name: "Fuel", Unit: "L"},
	} {
		_, err := svc.UpsertIndicator(ctx, ind)
		require.NoError(t, err)
	}

	_, err := svc.UpsertProcess(ctx, domain.UpsertProcessRequest{
		Code:       "PROD",
		Name:       "Production",
		Indicators: []string{"IND2", "IND1", "GHOST", "IND3"},
	})
	require.NoError(t, err)
	_, err = svc.UpsertProcess(ctx, domain.UpsertProcessRequest{
		Code:       "LOG",
		Name:       "Logistics",
		Indicators: []string{"IND4"},
	})
	require.NoError(t, err)
}

func TestUpsertIndicatorDefaultsAndUpdates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.UpsertIndicator(ctx, domain.UpsertIndicatorRequest{Code: " IND1 ", Name: "Energy Use"})
	require.NoError(t, err)
	assert.Equal(t, "IND1", created.Code)
	assert.Equal(t, domain.IndicatorTypePrimary, created.Type)

	_, err = svc.UpsertIndicator(ctx, domain.UpsertIndicatorRequest{Code: "IND1", Name: "Energy Use", Unit: "kWh", Type: "Derived"})
	require.NoError(t, err)

	got, err := svc.GetIndicator(ctx, "IND1")
	require.NoError(t, err)
	assert.Equal(t, "kWh", got.Unit)
	assert.Equal(t, "Derived", got.Type)

	_, err = svc.UpsertIndicator(ctx, domain.UpsertIndicatorRequest{Code: "IND5", Name: "X", CriterionCode: "missing"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.UpsertIndicator(ctx, domain.UpsertIndicatorRequest{Code: "", Name: "X"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCatalogForOrganizationWithoutSelectionIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	seedCatalog(t, svc)

	catalog, err := svc.CatalogForOrganization(context.Background(), domain.CatalogRequest{OrgID: orgID, AllProcesses: true})
	require.NoError(t, err)
	assert.Empty(t, catalog)
}

func TestCatalogForOrganizationFiltersByLatestSelection(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	seedCatalog(t, svc)

	_, err := svc.RecordSelection(ctx, domain.RecordSelectionRequest{OrgID: orgID, IndicatorNames: []string{"Fuel"}})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = svc.RecordSelection(ctx, domain.RecordSelectionRequest{OrgID: orgID, IndicatorNames: []string{"Energy Use", "Water Use"}})
	require.NoError(t, err)

	latest, err := svc.LatestSelection(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy Use", "Water Use"}, []string(latest.IndicatorNames))

	catalog, err := svc.CatalogForOrganization(ctx, domain.CatalogRequest{OrgID: orgID, AllProcesses: true})
	require.NoError(t, err)
	require.Len(t, catalog, 1, "LOG only references Fuel which is no longer selected")

	prod := catalog[0]
	assert.Equal(t, "PROD", prod.Process.Code)
	codes := make([]string, 0, len(prod.Indicators))
	for _, ind := range prod.Indicators {
		codes = append(codes, ind.Code)
	}
	// GHOST has no catalog row and IND3 loses the name tie to IND1.
	assert.Equal(t, []string{"IND2", "IND1"}, codes)
}

func TestCatalogForOrganizationRestrictsToAssignedProcesses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedCatalog(t, svc)

	_, err := svc.RecordSelection(ctx, domain.RecordSelectionRequest{OrgID: orgID, IndicatorNames: []string{"Energy Use", "Fuel"}})
	require.NoError(t, err)

	catalog, err := svc.CatalogForOrganization(ctx, domain.CatalogRequest{OrgID: orgID, ProcessCodes: []string{"LOG"}})
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "LOG", catalog[0].Process.Code)

	none, err := svc.CatalogForOrganization(ctx, domain.CatalogRequest{OrgID: orgID})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSetProcessIndicatorsReplaces(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedCatalog(t, svc)

	require.NoError(t, svc.SetProcessIndicators(ctx, "PROD", []string{"IND4", "IND4", "IND1"}))

	codes, err := svc.IndicatorCodes(ctx, []string{"PROD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"IND4", "IND1"}, codes)

	ok, err := svc.ProcessReferences(ctx, "PROD", "IND2")
	require.NoError(t, err)
	assert.False(t, ok)

	err = svc.SetProcessIndicators(ctx, "NOPE", []string{"IND1"})
	assert.ErrorIs(t, err, domain.ErrProcessNotFound)
}
