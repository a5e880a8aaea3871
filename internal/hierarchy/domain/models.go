// Package domain contains the organization hierarchy models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Contact groups the address and contact attributes shared by every entity.
type Contact struct {
	Address     string `gorm:"type:text;column:address" json:"address,omitempty"`
	City        string `gorm:"type:text;column:city" json:"city,omitempty"`
	PostalCode  string `gorm:"type:text;column:postal_code" json:"postal_code,omitempty"`
	Country     string `gorm:"type:text;column:country" json:"country,omitempty"`
	Phone       string `gorm:"type:text;column:phone" json:"phone,omitempty"`
	Email       string `gorm:"type:text;column:email" json:"email,omitempty"`
	ManagerName string `gorm:"type:text;column:manager_name" json:"manager_name,omitempty"`
}

// Organization is the top-level tenant.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_name" json:"name"`
	Slug      string       `gorm:"type:text;not null" json:"slug"`
	Contact   Contact      `gorm:"embedded" json:"contact"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// Subdivision is an energy-sector grouping ("filière") inside an organization.
type Subdivision struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex:ux_subdivisions_org_name,priority:1" json:"org_id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_subdivisions_org_name,priority:2" json:"name"`
	Location  string       `gorm:"type:text" json:"location,omitempty"`
	Contact   Contact      `gorm:"embedded" json:"contact"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Subdivision) TableName() string { return "subdivisions" }

// Subsidiary ("filiale") belongs to an organization and optionally to a subdivision.
type Subsidiary struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;uniqueIndex:ux_subsidiaries_org_name,priority:1" json:"org_id"`
	SubdivisionID snowflake.ID `gorm:"not null;default:0;index" json:"subdivision_id,omitempty"`
	Name          string       `gorm:"type:text;not null;uniqueIndex:ux_subsidiaries_org_name,priority:2" json:"name"`
	Contact       Contact      `gorm:"embedded" json:"contact"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (Subsidiary) TableName() string { return "subsidiaries" }

// Site is a physical location, the bottom of the hierarchy.
type Site struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;uniqueIndex:ux_sites_org_name,priority:1" json:"org_id"`
	SubdivisionID snowflake.ID `gorm:"not null;default:0;index" json:"subdivision_id,omitempty"`
	SubsidiaryID  snowflake.ID `gorm:"not null;default:0;index" json:"subsidiary_id,omitempty"`
	Name          string       `gorm:"type:text;not null;uniqueIndex:ux_sites_org_name,priority:2" json:"name"`
	Contact       Contact      `gorm:"embedded" json:"contact"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (Site) TableName() string { return "sites" }

// Entity is a selectable member of one hierarchy level.
type Entity struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Level Level        `json:"level"`
}

// Structure is the loaded tree of one organization.
type Structure struct {
	Organization Organization
	Subdivisions []Subdivision
	Subsidiaries []Subsidiary
	Sites        []Site
}

// IsComposite reports whether the organization owns a subdivision or a subsidiary.
// Simple organizations attach their sites directly.
func (s Structure) IsComposite() bool {
	return len(s.Subdivisions) > 0 || len(s.Subsidiaries) > 0
}
