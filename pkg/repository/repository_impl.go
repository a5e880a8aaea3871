package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/energyscope/pkg/db"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Observer receives one call per retried attempt.
type Observer func(table, operation string, attempt uint, err error)

// Config tunes the retry behaviour shared by all stores.
type Config struct {
	Policy   retry.Policy
	Observer Observer
}

type tabler interface {
	TableName() string
}

type store[T any] struct {
	db    *gorm.DB
	cfg   Config
	table string
}

func ProvideStore[T any](db *gorm.DB, cfg Config) Repository[T] {
	table := "unknown"
	if t, ok := any(new(T)).(tabler); ok {
		table = t.TableName()
	}
	return &store[T]{db: db, cfg: cfg, table: table}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx, cfg: r.cfg, table: r.table}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	return retry.Value(ctx, r.cfg.Policy, r.notify("select"), func() ([]*T, error) {
		var result []*T
		err := r.buildQuery(ctx, query, opts...).Find(&result).Error
		return result, translate(err)
	})
}

func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	return retry.Value(ctx, r.cfg.Policy, r.notify("select"), func() (*T, error) {
		var result []*T
		err := r.buildQuery(ctx, query, opts...).Limit(1).Find(&result).Error
		if err != nil {
			return nil, translate(err)
		}
		if len(result) == 0 {
			return nil, nil
		}
		return result[0], nil
	})
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return retry.Do(ctx, r.cfg.Policy, r.notify("insert"), func() error {
		return translate(r.db.WithContext(ctx).Create(resource).Error)
	})
}

func (r *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}

	return retry.Do(ctx, r.cfg.Policy, r.notify("insert"), func() error {
		return translate(r.db.WithContext(ctx).Create(resources).Error)
	})
}

// CreateIgnoreConflict inserts resources, skipping rows that collide with an
// existing unique key. Drivers disagree on RowsAffected for this statement,
// so callers that need the outcome re-read the table.
func (r *store[T]) CreateIgnoreConflict(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}

	return retry.Do(ctx, r.cfg.Policy, r.notify("insert"), func() error {
		return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(resources).Error)
	})
}

func (r *store[T]) Update(ctx context.Context, query *T, patch map[string]any, opts ...option.QueryOption) (int64, error) {
	if len(patch) == 0 {
		return 0, nil
	}

	return retry.Value(ctx, r.cfg.Policy, r.notify("update"), func() (int64, error) {
		stmt := r.db.WithContext(ctx).Model(new(T)).Where(query)
		for _, opt := range opts {
			stmt = opt.Apply(stmt)
		}
		res := stmt.Updates(patch)
		return res.RowsAffected, translate(res.Error)
	})
}

func (r *store[T]) Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	return retry.Value(ctx, r.cfg.Policy, r.notify("delete"), func() (int64, error) {
		stmt := r.db.WithContext(ctx).Where(query)
		for _, opt := range opts {
			stmt = opt.Apply(stmt)
		}
		res := stmt.Delete(new(T))
		return res.RowsAffected, translate(res.Error)
	})
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	return retry.Value(ctx, r.cfg.Policy, r.notify("select"), func() (int64, error) {
		var count int64
		err := r.buildQuery(ctx, query, opts...).Model(new(T)).Count(&count).Error
		return count, translate(err)
	})
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx).Where(filter)

	for _, opt := range opts {
		db = opt.Apply(db)
	}

	return db
}

func (r *store[T]) notify(operation string) retry.Notify {
	if r.cfg.Observer == nil {
		return nil
	}
	return func(attempt uint, err error, _ time.Duration) {
		r.cfg.Observer(r.table, operation, attempt, err)
	}
}

var errDuplicate = errs.Duplicate("duplicate_key", "a record with the same unique key already exists")

// translate converts storage errors into the shared taxonomy at the storage boundary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch db.Classify(err) {
	case db.UniqueViolation:
		return errDuplicate.WithCause(err)
	case db.ForeignKeyViolation:
		return errs.Validation("unknown_reference", "the record references a row that does not exist").WithCause(err)
	}
	if errors.Is(err, gorm.ErrMissingWhereClause) {
		return errs.Validation("missing_filter", "refusing to touch every row without a filter").WithCause(err)
	}
	return err
}
