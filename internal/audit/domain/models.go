package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Target types recorded in the audit trail.
const (
	TargetIndicatorValue = "indicator_value"
	TargetAssignment     = "user_assignment"
	TargetPeriod         = "collection_period"
)

const ActorSystem = "system"

// AuditLog is one append-only entry. Status fields are set for workflow transitions.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index:ix_audit_logs_target,priority:1" json:"org_id"`
	Actor      string            `gorm:"type:text;not null" json:"actor"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"type:text;not null;index:ix_audit_logs_target,priority:2" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:ix_audit_logs_target,priority:3" json:"target_id"`
	FromStatus string            `gorm:"type:text" json:"from_status,omitempty"`
	ToStatus   string            `gorm:"type:text" json:"to_status,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Actor      string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Ascending  bool
	Limit      int
}
