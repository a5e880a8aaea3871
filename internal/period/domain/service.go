package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (*CollectionPeriod, error)
	GeneratePeriods(ctx context.Context, orgID snowflake.ID, year int, periodType PeriodType) ([]CollectionPeriod, error)
	ClosePeriod(ctx context.Context, id snowflake.ID) (*CollectionPeriod, error)
	ReopenPeriod(ctx context.Context, id snowflake.ID) (*CollectionPeriod, error)
	GetPeriod(ctx context.Context, id snowflake.ID) (*CollectionPeriod, error)
	ListPeriods(ctx context.Context, orgID snowflake.ID) ([]CollectionPeriod, error)
	CurrentOpenPeriod(ctx context.Context, orgID snowflake.ID) (*CollectionPeriod, error)
}

type CreatePeriodRequest struct {
	OrgID      snowflake.ID
	Year       int
	PeriodType PeriodType
	Number     int
	// Closed creates the period already closed, used to backfill history.
	Closed bool
}
