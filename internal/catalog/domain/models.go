// Package domain contains the process, criterion and indicator catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// IndicatorTypePrimary tags indicators that are measured rather than derived.
const IndicatorTypePrimary = "Primaire"

type Issue struct {
	Code        string    `gorm:"primaryKey;type:text" json:"code"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Issue) TableName() string { return "issues" }

type Criterion struct {
	Code        string    `gorm:"primaryKey;type:text" json:"code"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IssueCode   string    `gorm:"type:text;index" json:"issue_code,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (Criterion) TableName() string { return "criteria" }

// Indicator is a master catalog entry.
type Indicator struct {
	Code          string    `gorm:"primaryKey;type:text" json:"code"`
	Name          string    `gorm:"type:text;not null;index" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	Unit          string    `gorm:"type:text" json:"unit,omitempty"`
	Type          string    `gorm:"type:text" json:"type,omitempty"`
	IssueCode     string    `gorm:"type:text" json:"issue_code,omitempty"`
	CriterionCode string    `gorm:"type:text" json:"criterion_code,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Indicator) TableName() string { return "indicators" }

type Process struct {
	Code        string    `gorm:"primaryKey;type:text" json:"code"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Process) TableName() string { return "processes" }

// ProcessIndicator links a process to an indicator code. Position keeps the
// declaration order; the code may not exist in the catalog.
type ProcessIndicator struct {
	ProcessCode   string `gorm:"primaryKey;type:text" json:"process_code"`
	IndicatorCode string `gorm:"primaryKey;type:text" json:"indicator_code"`
	Position      int    `gorm:"not null;default:0" json:"position"`
}

func (ProcessIndicator) TableName() string { return "process_indicators" }

type ProcessCriterion struct {
	ProcessCode   string `gorm:"primaryKey;type:text" json:"process_code"`
	CriterionCode string `gorm:"primaryKey;type:text" json:"criterion_code"`
}

func (ProcessCriterion) TableName() string { return "process_criteria" }

// OrganizationSelection records what an organization picked at setup. Rows
// are append-only; the newest row is the current selection.
type OrganizationSelection struct {
	ID             snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID                `gorm:"not null;index:ix_organization_selections_org_created,priority:1" json:"org_id"`
	Sector         string                      `gorm:"type:text" json:"sector,omitempty"`
	EnergyTypes    datatypes.JSONSlice[string] `gorm:"not null" json:"energy_types"`
	Standards      datatypes.JSONSlice[string] `gorm:"not null" json:"standards"`
	IssueNames     datatypes.JSONSlice[string] `gorm:"not null" json:"issue_names"`
	CriterionNames datatypes.JSONSlice[string] `gorm:"not null" json:"criterion_names"`
	IndicatorNames datatypes.JSONSlice[string] `gorm:"not null" json:"indicator_names"`
	CreatedAt      time.Time                   `gorm:"not null;index:ix_organization_selections_org_created,priority:2" json:"created_at"`
}

func (OrganizationSelection) TableName() string { return "organization_selections" }

// ProcessWithIndicators is one process and the indicators it exposes to an organization.
type ProcessWithIndicators struct {
	Process    Process     `json:"process"`
	Criteria   []string    `json:"criteria,omitempty"`
	Indicators []Indicator `json:"indicators"`
}

// NameToCode maps indicator names to codes. indicators must be in catalog
// order (code ascending); the first indicator carrying a name wins.
func NameToCode(indicators []Indicator) map[string]string {
	lookup := make(map[string]string, len(indicators))
	for _, ind := range indicators {
		if _, seen := lookup[ind.Name]; seen {
			continue
		}
		lookup[ind.Name] = ind.Code
	}
	return lookup
}

// SelectedCodes resolves selected names to codes by exact name equality.
// Names absent from the catalog are ignored.
func SelectedCodes(lookup map[string]string, names []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(names))
	for _, name := range names {
		if code, ok := lookup[name]; ok {
			codes[code] = struct{}{}
		}
	}
	return codes
}
