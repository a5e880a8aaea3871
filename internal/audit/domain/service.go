package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/pkg/db/pagination"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"gorm.io/gorm"
)

// Entry is what callers hand to Record. Actor and OrgID fall back to the
// values carried by the context.
type Entry struct {
	OrgID      snowflake.ID
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	FromStatus string
	ToStatus   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Actor      string
	StartAt    *time.Time
	EndAt      *time.Time
	// Oldest returns entries in chronological order.
	Oldest bool
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) (*AuditLog, error)
	// RecordTx writes the entry with tx so it commits with the change it describes.
	RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) (*AuditLog, error)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidOrganization = errs.Validation("invalid_organization", "organization is required")
	ErrInvalidPageToken    = errs.Validation("invalid_page_token", "page token is malformed")
	ErrInvalidTimeRange    = errs.Validation("invalid_time_range", "start must precede end")
	ErrInvalidAction       = errs.Validation("invalid_action", "action is required")
	ErrInvalidTarget       = errs.Validation("invalid_target", "target id is required")
)
