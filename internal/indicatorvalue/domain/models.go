package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/energyscope/internal/access/domain"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
)

// IndicatorValue is one reported figure for (period, indicator, scope, submitter).
// The scope columns are denormalized so visibility can be filtered in SQL.
type IndicatorValue struct {
	ID            snowflake.ID          `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID          `gorm:"not null;index" json:"org_id"`
	PeriodID      snowflake.ID          `gorm:"not null;uniqueIndex:ux_indicator_values_tuple,priority:1" json:"period_id"`
	IndicatorCode string                `gorm:"type:text;not null;uniqueIndex:ux_indicator_values_tuple,priority:2" json:"indicator_code"`
	ProcessCode   string                `gorm:"type:text;not null;index" json:"process_code"`
	ScopeLevel    hierarchydomain.Level `gorm:"type:text;not null" json:"scope_level"`
	ScopeName     string                `gorm:"type:text;not null" json:"scope_name"`
	ScopeKey      string                `gorm:"type:text;not null;uniqueIndex:ux_indicator_values_tuple,priority:3" json:"scope_key"`
	SubdivisionID snowflake.ID          `gorm:"index" json:"subdivision_id,omitempty"`
	SubsidiaryID  snowflake.ID          `gorm:"index" json:"subsidiary_id,omitempty"`
	SiteID        snowflake.ID          `gorm:"index" json:"site_id,omitempty"`

	Value           *float64   `json:"value"`
	Unit            string     `gorm:"type:text" json:"unit,omitempty"`
	Comment         string     `gorm:"type:text" json:"comment,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	Status          Status     `gorm:"type:text;not null;index" json:"status"`
	SubmittedBy     string     `gorm:"type:text;not null;uniqueIndex:ux_indicator_values_tuple,priority:4" json:"submitted_by"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ValidatedBy     string     `gorm:"type:text" json:"validated_by,omitempty"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (IndicatorValue) TableName() string { return "indicator_values" }

func (v IndicatorValue) Scope() hierarchydomain.Scope {
	return hierarchydomain.Scope{
		Level:         v.ScopeLevel,
		Name:          v.ScopeName,
		OrgID:         v.OrgID,
		SubdivisionID: v.SubdivisionID,
		SubsidiaryID:  v.SubsidiaryID,
		SiteID:        v.SiteID,
	}
}

func (v IndicatorValue) Ref() accessdomain.ValueRef {
	return accessdomain.ValueRef{Scope: v.Scope(), IndicatorCode: v.IndicatorCode, SubmittedBy: v.SubmittedBy}
}

// SetScope copies the scope and its ancestor chain onto the value.
func (v *IndicatorValue) SetScope(scope hierarchydomain.Scope) {
	v.OrgID = scope.OrgID
	v.ScopeLevel = scope.Level
	v.ScopeName = scope.Name
	v.ScopeKey = scope.Key()
	v.SubdivisionID = scope.SubdivisionID
	v.SubsidiaryID = scope.SubsidiaryID
	v.SiteID = scope.SiteID
}
