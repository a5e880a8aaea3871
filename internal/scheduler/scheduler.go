package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/config"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/energyscope/internal/period/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobEnsurePeriods = "ensure_periods"

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Hierarchy  hierarchydomain.Service
	Periods    perioddomain.Service
	Collection *config.CollectionConfigHolder `optional:"true"`
	Metrics    *metrics.Scheduler             `optional:"true"`
	Config     Config                         `optional:"true"`
}

// Scheduler keeps the collection calendar of every organization populated.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	hierarchy  hierarchydomain.Service
	periods    perioddomain.Service
	collection *config.CollectionConfigHolder
	metrics    *metrics.Scheduler
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Hierarchy == nil || p.Periods == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		hierarchy:  p.Hierarchy,
		periods:    p.Periods,
		collection: p.Collection,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)

	err := fn(ctx)
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)

	elapsed := s.clock.Now().Sub(run.startedAt)
	if err == nil {
		s.metrics.ObserveJob(name, metrics.JobOutcomeSuccess, elapsed)
		return nil
	}

	// deadline is a soft timeout, the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.ObserveJob(name, metrics.JobOutcomeTimeout, elapsed)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.ObserveJob(name, metrics.JobOutcomeError, elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, jobEnsurePeriods, s.cfg.JobTimeout, s.EnsurePeriodsJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// EnsurePeriodsJob generates the periods of the configured cadence for the
// current year of every organization, and for the next year once it is
// within the look-ahead window. Existing periods are left untouched.
func (s *Scheduler) EnsurePeriodsJob(ctx context.Context) error {
	periodType, err := perioddomain.ParsePeriodType(s.cadence())
	if err != nil {
		return err
	}

	orgs, err := s.hierarchy.ListOrganizations(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	years := []int{now.Year()}
	if next := now.Add(s.cfg.LookAhead).Year(); next != now.Year() {
		years = append(years, next)
	}

	run := jobRunFromContext(ctx)
	var errs error
	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, year := range years {
			periods, err := s.periods.GeneratePeriods(ctx, org.ID, year, periodType)
			if err != nil {
				s.logJobError(ctx, "scheduler.periods.failed", org.ID, err,
					zap.Int("year", year),
					zap.String("period_type", string(periodType)),
				)
				errs = errors.Join(errs, err)
				continue
			}
			run.AddProcessed(len(periods))
		}
	}
	return errs
}

func (s *Scheduler) cadence() string {
	if s.collection == nil {
		return config.DefaultCollectionConfig().Cadence
	}
	return s.collection.Get().Cadence
}
