// Package domain contains collection period models.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/pkg/errs"
)

type PeriodType string

const (
	PeriodMonth    PeriodType = "month"
	PeriodQuarter  PeriodType = "quarter"
	PeriodSemester PeriodType = "semester"
	PeriodYear     PeriodType = "year"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CollectionPeriod is one reporting window of an organization.
type CollectionPeriod struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;uniqueIndex:ux_collection_periods_tuple,priority:1" json:"org_id"`
	Year         int          `gorm:"not null;uniqueIndex:ux_collection_periods_tuple,priority:2" json:"year"`
	PeriodType   PeriodType   `gorm:"type:text;not null;uniqueIndex:ux_collection_periods_tuple,priority:3" json:"period_type"`
	PeriodNumber int          `gorm:"not null;uniqueIndex:ux_collection_periods_tuple,priority:4" json:"period_number"`
	StartDate    time.Time    `gorm:"not null" json:"start_date"`
	EndDate      time.Time    `gorm:"not null" json:"end_date"`
	Status       Status       `gorm:"type:text;not null;index" json:"status"`
	ClosedAt     *time.Time   `json:"closed_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (CollectionPeriod) TableName() string { return "collection_periods" }

func (p CollectionPeriod) IsOpen() bool { return p.Status == StatusOpen }

// EnsureOpen refuses new or edited values on a closed period.
func (p CollectionPeriod) EnsureOpen() error {
	if !p.IsOpen() {
		return ErrPeriodClosed
	}
	return nil
}

// Label renders the period as "2025-month-06".
func (p CollectionPeriod) Label() string {
	return fmt.Sprintf("%d-%s-%02d", p.Year, p.PeriodType, p.PeriodNumber)
}

func ParsePeriodType(raw string) (PeriodType, error) {
	switch t := PeriodType(strings.ToLower(strings.TrimSpace(raw))); t {
	case PeriodMonth, PeriodQuarter, PeriodSemester, PeriodYear:
		return t, nil
	default:
		return "", ErrInvalidPeriodType
	}
}

// Count is the number of periods of this type in a year.
func (t PeriodType) Count() int {
	switch t {
	case PeriodMonth:
		return 12
	case PeriodQuarter:
		return 4
	case PeriodSemester:
		return 2
	case PeriodYear:
		return 1
	default:
		return 0
	}
}

// Bounds returns the first and the last day of period number n of year.
func Bounds(year int, t PeriodType, n int) (time.Time, time.Time, error) {
	if year < 1900 || year > 9999 {
		return time.Time{}, time.Time{}, ErrInvalidYear
	}
	count := t.Count()
	if count == 0 {
		return time.Time{}, time.Time{}, ErrInvalidPeriodType
	}
	if n < 1 || n > count {
		return time.Time{}, time.Time{}, ErrInvalidPeriodNumber
	}

	months := 12 / count
	startMonth := time.Month((n-1)*months + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, months, -1)
	return start, end, nil
}

// Less orders periods by (year, period_number), then end date.
func Less(a, b CollectionPeriod) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.PeriodNumber != b.PeriodNumber {
		return a.PeriodNumber < b.PeriodNumber
	}
	return a.EndDate.Before(b.EndDate)
}

var (
	ErrInvalidOrganization = errs.Validation("invalid_organization", "organization is required")
	ErrInvalidYear         = errs.Validation("invalid_year", "year must be between 1900 and 9999")
	ErrInvalidPeriodType   = errs.Validation("invalid_period_type", "period type must be one of month, quarter, semester, year")
	ErrInvalidPeriodNumber = errs.Validation("invalid_period_number", "period number is out of range for its type")
	ErrInvalidPeriod       = errs.Validation("invalid_period", "period is required")

	ErrPeriodExists   = errs.Duplicate("period_exists", "a period already exists for this organization, year, type and number")
	ErrPeriodNotFound = errs.NotFound("period_not_found", "collection period not found")
	ErrPeriodClosed   = errs.Forbidden("period_closed", "collection period is closed")
)
