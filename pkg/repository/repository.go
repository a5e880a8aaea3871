package repository

import (
	"context"

	"github.com/smallbiznis/energyscope/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the select/insert/update/delete surface every domain store
// is built on. Each call is committed on its own and retried on transient
// failures.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	BatchCreate(ctx context.Context, resources []*T) error
	CreateIgnoreConflict(ctx context.Context, resources []*T) error
	Update(ctx context.Context, query *T, patch map[string]any, opts ...option.QueryOption) (int64, error)
	Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
