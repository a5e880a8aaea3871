package domain

import (
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"gorm.io/gorm"
)

// ScopeRule selects how a value scope is compared with the user's scope.
type ScopeRule int

const (
	// ScopeExact requires the value scope to be the user's scope.
	ScopeExact ScopeRule = iota
	// ScopeContained accepts any value scope nested in the user's scope.
	ScopeContained
	// ScopeOrganization accepts any value of the user's organization.
	ScopeOrganization
)

// ValueRef is the part of an indicator value the visibility rules read.
type ValueRef struct {
	Scope         hierarchydomain.Scope
	IndicatorCode string
	SubmittedBy   string
}

// Visibility is the predicate over indicator values for one user.
type Visibility struct {
	Scope     hierarchydomain.Scope
	Rule      ScopeRule
	Submitter string
	// IndicatorCodes restricts indicators; nil means unrestricted.
	IndicatorCodes []string
}

// NewVisibility builds the predicate for an assignment. indicatorCodes is the
// union of the indicators of the assigned processes and is ignored for admins.
func NewVisibility(a Assignment, indicatorCodes []string) Visibility {
	codes := append([]string{}, indicatorCodes...)
	switch a.Role {
	case RoleContributor:
		return Visibility{Scope: a.Scope, Rule: ScopeExact, Submitter: a.UserEmail, IndicatorCodes: codes}
	case RoleValidator:
		return Visibility{Scope: a.Scope, Rule: ScopeContained, IndicatorCodes: codes}
	default:
		return Visibility{Scope: a.Scope, Rule: ScopeOrganization}
	}
}

// Allows evaluates the predicate in memory.
func (v Visibility) Allows(ref ValueRef) bool {
	if v.Scope.OrgID == 0 || ref.Scope.OrgID != v.Scope.OrgID {
		return false
	}

	switch v.Rule {
	case ScopeExact:
		if ref.Scope.Key() != v.Scope.Key() {
			return false
		}
	case ScopeContained:
		if !hierarchydomain.Contains(v.Scope, ref.Scope) {
			return false
		}
	}

	if v.Submitter != "" && NormalizeEmail(ref.SubmittedBy) != v.Submitter {
		return false
	}
	if v.IndicatorCodes != nil && !contains(v.IndicatorCodes, ref.IndicatorCode) {
		return false
	}
	return true
}

// Apply adds the predicate to a query over the indicator_values columns
// org_id, scope_key, scope_level, subdivision_id, subsidiary_id, site_id,
// submitted_by and indicator_code.
func (v Visibility) Apply(db *gorm.DB) *gorm.DB {
	db = db.Where("org_id = ?", v.Scope.OrgID)

	switch v.Rule {
	case ScopeExact:
		db = db.Where("scope_key = ?", v.Scope.Key())
	case ScopeContained:
		switch v.Scope.Level {
		case hierarchydomain.LevelSubdivision:
			db = db.Where("subdivision_id = ?", v.Scope.SubdivisionID)
		case hierarchydomain.LevelSubsidiary:
			db = db.Where("subsidiary_id = ?", v.Scope.SubsidiaryID)
		case hierarchydomain.LevelSite:
			db = db.Where("scope_level = ? AND site_id = ?", hierarchydomain.LevelSite, v.Scope.SiteID)
		}
	}

	if v.Submitter != "" {
		db = db.Where("submitted_by = ?", v.Submitter)
	}
	if v.IndicatorCodes != nil {
		if len(v.IndicatorCodes) == 0 {
			return db.Where("1 = 0")
		}
		db = db.Where("indicator_code IN ?", v.IndicatorCodes)
	}
	return db
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
