// Package option holds composable query modifiers for gorm statements.
package option

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// SortBy orders results by a single column.
type SortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy maps request sort parameters to a SortBy restricted to allowed columns.
// Unknown columns fall back to created_at.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) SortBy {
	column := strings.ToLower(strings.TrimSpace(sortBy))
	if column == "" || !allowed[column] {
		column = "created_at"
	}
	return SortBy{
		Column: column,
		Desc:   !strings.EqualFold(strings.TrimSpace(orderBy), "asc"),
	}
}

// WithSortBy applies the given orderings in sequence.
func WithSortBy(sorts ...SortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, s := range sorts {
			if strings.TrimSpace(s.Column) == "" {
				continue
			}
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Column}, Desc: s.Desc})
		}
		return db
	})
}

// WithLimit caps the number of rows. Non-positive values are ignored.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithOffset skips rows. Non-positive values are ignored.
func WithOffset(offset int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithWhere adds a raw condition, for filters a struct query cannot express.
func WithWhere(query string, args ...any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithIn restricts column to values. An empty set matches nothing.
func WithIn[V any](column string, values []V) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if len(values) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where(clause.IN{Column: clause.Column{Name: column}, Values: toAny(values)})
	})
}

func toAny[V any](values []V) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
