package service

import (
	"context"
	"errors"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/period/domain"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Store repository.Config
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	periodRepo repository.Repository[domain.CollectionPeriod]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("period.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		periodRepo: repository.ProvideStore[domain.CollectionPeriod](p.DB, p.Store),
	}
}

func (s *Service) CreatePeriod(ctx context.Context, req domain.CreatePeriodRequest) (*domain.CollectionPeriod, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	periodType, err := domain.ParsePeriodType(string(req.PeriodType))
	if err != nil {
		return nil, err
	}
	start, end, err := domain.Bounds(req.Year, periodType, req.Number)
	if err != nil {
		return nil, err
	}

	existing, err := s.periodRepo.Count(ctx, &domain.CollectionPeriod{
		OrgID:        req.OrgID,
		Year:         req.Year,
		PeriodType:   periodType,
		PeriodNumber: req.Number,
	})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, domain.ErrPeriodExists
	}

	now := s.clock.Now()
	period := &domain.CollectionPeriod{
		ID:           s.genID.Generate(),
		OrgID:        req.OrgID,
		Year:         req.Year,
		PeriodType:   periodType,
		PeriodNumber: req.Number,
		StartDate:    start,
		EndDate:      end,
		Status:       domain.StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Closed {
		period.Status = domain.StatusClosed
		period.ClosedAt = &now
	}

	if err := s.periodRepo.Create(ctx, period); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			return nil, domain.ErrPeriodExists.WithCause(err)
		}
		return nil, err
	}

	s.log.Info("collection period created",
		zap.String("org_id", req.OrgID.String()),
		zap.String("period", period.Label()),
	)
	return period, nil
}

// GeneratePeriods creates every period of a cadence for year. Existing
// periods are kept as they are.
func (s *Service) GeneratePeriods(ctx context.Context, orgID snowflake.ID, year int, periodType domain.PeriodType) ([]domain.CollectionPeriod, error) {
	periodType, err := domain.ParsePeriodType(string(periodType))
	if err != nil {
		return nil, err
	}

	for n := 1; n <= periodType.Count(); n++ {
		_, err := s.CreatePeriod(ctx, domain.CreatePeriodRequest{OrgID: orgID, Year: year, PeriodType: periodType, Number: n})
		if err != nil && !errors.Is(err, errs.ErrDuplicate) {
			return nil, err
		}
	}

	items, err := s.periodRepo.Find(ctx, &domain.CollectionPeriod{OrgID: orgID, Year: year, PeriodType: periodType},
		option.WithSortBy(option.SortBy{Column: "period_number"}),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) ClosePeriod(ctx context.Context, id snowflake.ID) (*domain.CollectionPeriod, error) {
	now := s.clock.Now()
	return s.setStatus(ctx, id, domain.StatusClosed, map[string]any{
		"status":     domain.StatusClosed,
		"closed_at":  now,
		"updated_at": now,
	})
}

func (s *Service) ReopenPeriod(ctx context.Context, id snowflake.ID) (*domain.CollectionPeriod, error) {
	return s.setStatus(ctx, id, domain.StatusOpen, map[string]any{
		"status":     domain.StatusOpen,
		"closed_at":  nil,
		"updated_at": s.clock.Now(),
	})
}

func (s *Service) setStatus(ctx context.Context, id snowflake.ID, status domain.Status, patch map[string]any) (*domain.CollectionPeriod, error) {
	period, err := s.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if period.Status == status {
		return period, nil
	}

	if _, err := s.periodRepo.Update(ctx, &domain.CollectionPeriod{ID: id}, patch); err != nil {
		return nil, err
	}

	s.log.Info("collection period status changed",
		zap.String("period_id", id.String()),
		zap.String("period", period.Label()),
		zap.String("status", string(status)),
	)
	return s.GetPeriod(ctx, id)
}

func (s *Service) GetPeriod(ctx context.Context, id snowflake.ID) (*domain.CollectionPeriod, error) {
	if id == 0 {
		return nil, domain.ErrInvalidPeriod
	}
	period, err := s.periodRepo.FindOne(ctx, &domain.CollectionPeriod{ID: id})
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrPeriodNotFound
	}
	return period, nil
}

// ListPeriods orders by year desc, then period number desc.
func (s *Service) ListPeriods(ctx context.Context, orgID snowflake.ID) ([]domain.CollectionPeriod, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	items, err := s.periodRepo.Find(ctx, &domain.CollectionPeriod{OrgID: orgID},
		option.WithSortBy(
			option.SortBy{Column: "year", Desc: true},
			option.SortBy{Column: "period_number", Desc: true},
			option.SortBy{Column: "end_date", Desc: true},
		),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// CurrentOpenPeriod prefers the open month period of the current year and
// month, then the open period with the greatest (year, period_number).
// It returns nil when no period is open.
func (s *Service) CurrentOpenPeriod(ctx context.Context, orgID snowflake.ID) (*domain.CollectionPeriod, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	current, err := s.periodRepo.FindOne(ctx, &domain.CollectionPeriod{
		OrgID:        orgID,
		Year:         now.Year(),
		PeriodType:   domain.PeriodMonth,
		PeriodNumber: int(now.Month()),
		Status:       domain.StatusOpen,
	})
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}

	open, err := s.periodRepo.Find(ctx, &domain.CollectionPeriod{OrgID: orgID, Status: domain.StatusOpen})
	if err != nil {
		return nil, err
	}
	return latest(deref(open)), nil
}

func latest(periods []domain.CollectionPeriod) *domain.CollectionPeriod {
	if len(periods) == 0 {
		return nil
	}
	sort.SliceStable(periods, func(i, j int) bool {
		return domain.Less(periods[j], periods[i])
	})
	return &periods[0]
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}

