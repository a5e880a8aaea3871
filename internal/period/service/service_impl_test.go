package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/period/domain"
	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const orgID = snowflake.ID(7)

func newTestService(t *testing.T, now time.Time) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.CollectionPeriod{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(now),
		Store: repository.Config{},
	})
}

func TestCreatePeriodDuplicate(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	period, err := svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 6})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, period.Status)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), period.EndDate)

	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 6})
	assert.ErrorIs(t, err, errs.ErrDuplicate)
	assert.ErrorIs(t, err, domain.ErrPeriodExists)

	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID + 1, Year: 2025, PeriodType: domain.PeriodMonth, Number: 6})
	assert.NoError(t, err, "the tuple is scoped per organization")

	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodSemester, Number: 3})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestGeneratePeriodsIsIdempotent(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.GeneratePeriods(ctx, orgID, 2025, domain.PeriodQuarter)
	require.NoError(t, err)
	require.Len(t, first, 4)

	again, err := svc.GeneratePeriods(ctx, orgID, 2025, domain.PeriodQuarter)
	require.NoError(t, err)
	require.Len(t, again, 4)
	for i := range first {
		assert.Equal(t, first[i].ID, again[i].ID)
		assert.Equal(t, i+1, again[i].PeriodNumber)
	}
}

func TestListPeriodsOrdering(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, req := range []domain.CreatePeriodRequest{
		{Year: 2024, PeriodType: domain.PeriodMonth, Number: 12},
		{Year: 2025, PeriodType: domain.PeriodMonth, Number: 2},
		{Year: 2025, PeriodType: domain.PeriodMonth, Number: 11},
	} {
		req.OrgID = orgID
		_, err := svc.CreatePeriod(ctx, req)
		require.NoError(t, err)
	}

	periods, err := svc.ListPeriods(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, "2025-month-11", periods[0].Label())
	assert.Equal(t, "2025-month-02", periods[1].Label())
	assert.Equal(t, "2024-month-12", periods[2].Label())
}

func TestCurrentOpenPeriodPrefersCurrentMonth(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	june, err := svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 6})
	require.NoError(t, err)
	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 9})
	require.NoError(t, err)

	current, err := svc.CurrentOpenPeriod(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, june.ID, current.ID)
}

func TestCurrentOpenPeriodFallsBackToGreatestOpen(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	june, err := svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 6})
	require.NoError(t, err)
	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodMonth, Number: 3})
	require.NoError(t, err)
	q2, err := svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodQuarter, Number: 4})
	require.NoError(t, err)
	_, err = svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2026, PeriodType: domain.PeriodMonth, Number: 1, Closed: true})
	require.NoError(t, err)

	_, err = svc.ClosePeriod(ctx, june.ID)
	require.NoError(t, err)

	current, err := svc.CurrentOpenPeriod(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, q2.ID, current.ID, "greatest open (year, number) wins once the current month is closed")
}

func TestCurrentOpenPeriodNone(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	current, err := svc.CurrentOpenPeriod(context.Background(), orgID)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCloseAndReopen(t *testing.T) {
	svc := newTestService(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	period, err := svc.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: 2025, PeriodType: domain.PeriodYear, Number: 1})
	require.NoError(t, err)

	closed, err := svc.ClosePeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.ErrorIs(t, closed.EnsureOpen(), errs.ErrForbidden)

	reopened, err := svc.ReopenPeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsOpen())
	assert.Nil(t, reopened.ClosedAt)

	_, err = svc.GetPeriod(ctx, snowflake.ID(999))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
