package domain

import "github.com/smallbiznis/energyscope/pkg/errs"

var (
	ErrInvalidName         = errs.Validation("invalid_name", "name is required")
	ErrInvalidLevel        = errs.Validation("invalid_level", "level must be one of site, subsidiary, subdivision, group")
	ErrInvalidOrganization = errs.Validation("invalid_organization", "organization is required")
	ErrEntityRequired      = errs.Validation("entity_required", "an entity must be chosen for this level")
	ErrParentMismatch      = errs.Validation("parent_mismatch", "site subdivision differs from its subsidiary's subdivision")

	ErrOrganizationExists = errs.Duplicate("organization_exists", "an organization with this name already exists")
	ErrEntityExists       = errs.Duplicate("entity_exists", "an entity with this name already exists in the organization")

	ErrOrganizationNotFound = errs.NotFound("organization_not_found", "organization not found")
	ErrSubdivisionNotFound  = errs.NotFound("subdivision_not_found", "subdivision not found")
	ErrSubsidiaryNotFound   = errs.NotFound("subsidiary_not_found", "subsidiary not found")
	ErrSiteNotFound         = errs.NotFound("site_not_found", "site not found")
)
