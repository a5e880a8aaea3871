package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/energyscope/internal/audit/domain"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/pkg/errs"
)

type Service interface {
	SaveDraft(ctx context.Context, req CreateValueRequest) (*IndicatorValue, error)
	CreateValue(ctx context.Context, req CreateValueRequest) (*IndicatorValue, error)
	Submit(ctx context.Context, req SubmitRequest) (*IndicatorValue, error)
	EditValue(ctx context.Context, req EditValueRequest) (*IndicatorValue, error)
	Validate(ctx context.Context, req ValidateRequest) (*IndicatorValue, error)
	Reject(ctx context.Context, req RejectRequest) (*IndicatorValue, error)

	GetValue(ctx context.Context, viewer string, id snowflake.ID) (*IndicatorValue, error)
	History(ctx context.Context, viewer string, id snowflake.ID) ([]auditdomain.AuditLog, error)
	ListVisible(ctx context.Context, req ListVisibleRequest) ([]IndicatorValue, error)
}

// CreateValueRequest describes a new value. The scope is the submitter's
// level and entity name. An empty Submitter resolves the signed-in user.
type CreateValueRequest struct {
	OrgID         snowflake.ID
	PeriodID      snowflake.ID
	IndicatorCode string
	ProcessCode   string
	Level         hierarchydomain.Level
	EntityName    string
	Value         *float64
	Unit          string
	Comment       string
	Submitter     string
}

type SubmitRequest struct {
	ValueID snowflake.ID
	Actor   string
}

// EditValueRequest replaces the value and comment.
type EditValueRequest struct {
	ValueID snowflake.ID
	Value   *float64
	Comment string
	Editor  string
}

type ValidateRequest struct {
	ValueID   snowflake.ID
	Validator string
}

type RejectRequest struct {
	ValueID   snowflake.ID
	Validator string
	Reason    string
}

// ListVisibleRequest filters the values visible to Viewer. Zero fields are ignored.
type ListVisibleRequest struct {
	Viewer        string
	PeriodID      snowflake.ID
	IndicatorCode string
	ProcessCode   string
	Status        Status
	Limit         int
}

var (
	ErrInvalidValue     = errs.Validation("invalid_value", "value must be a finite number")
	ErrInvalidID        = errs.Validation("invalid_value_id", "value id is required")
	ErrInvalidIndicator = errs.Validation("invalid_indicator", "indicator code is required")
	ErrInvalidProcess   = errs.Validation("invalid_process", "process code is required")
	ErrInvalidPeriod    = errs.Validation("invalid_period", "period is required")
	ErrInvalidReason    = errs.Validation("invalid_reason", "a rejection reason is required")
	ErrInvalidStatus    = errs.Validation("invalid_status", "unknown value status")
	ErrDraftsDisabled   = errs.Forbidden("drafts_disabled", "saving drafts is disabled")

	ErrValueExists   = errs.Duplicate("value_exists", "a value already exists for this period, indicator, scope and submitter")
	ErrValueNotFound = errs.NotFound("value_not_found", "indicator value not found")

	ErrPeriodMismatch      = errs.Forbidden("period_mismatch", "period belongs to another organization")
	ErrIndicatorNotInScope = errs.Forbidden("indicator_not_in_process", "process does not reference the indicator")
	ErrStaleValue          = errs.Forbidden("stale_value", "value changed concurrently, reload and retry")
)
