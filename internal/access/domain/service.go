package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/pkg/errs"
)

// ObjectIndicatorValue is the casbin object guarding the value workflow.
const ObjectIndicatorValue = "indicator_value"

// Permission actions on indicator values.
const (
	ActionView     = "indicator_value.view"
	ActionDraft    = "indicator_value.draft"
	ActionCreate   = "indicator_value.create"
	ActionSubmit   = "indicator_value.submit"
	ActionEdit     = "indicator_value.edit"
	ActionValidate = "indicator_value.validate"
	ActionReject   = "indicator_value.reject"
)

type Service interface {
	SetAssignment(ctx context.Context, req SetAssignmentRequest) (*Assignment, error)
	GetAssignment(ctx context.Context, email string) (*Assignment, error)
	VisibleValues(ctx context.Context, a Assignment) (Visibility, error)
	Authorize(ctx context.Context, a Assignment, action string) error
	CanAct(ctx context.Context, a Assignment, action string, valueScope hierarchydomain.Scope) error
	LevelSelector(ctx context.Context, a Assignment) (Selector, error)
}

// SetAssignmentRequest is the full target state of a user's assignment.
// Processes replace the current set.
type SetAssignmentRequest struct {
	Email      string
	OrgID      snowflake.ID
	Role       Role
	Level      hierarchydomain.Level
	EntityName string
	Processes  []string
}

var (
	ErrInvalidEmail        = errs.Validation("invalid_email", "a user email is required")
	ErrInvalidRole         = errs.Validation("invalid_role", "role must be one of contributor, validator, admin")
	ErrInvalidOrganization = errs.Validation("invalid_organization", "organization is required")
	ErrAdminLevel          = errs.Validation("admin_requires_group", "admins are assigned at the group level")
	ErrAdminProcesses      = errs.Validation("admin_has_no_processes", "admins have no process assignment")
	ErrProcessesRequired   = errs.Validation("processes_required", "contributors and validators need at least one process")

	ErrAssignmentNotFound = errs.NotFound("assignment_not_found", "user has no assignment")

	ErrRoleNotAllowed     = errs.Forbidden("role_not_allowed", "role does not allow this action")
	ErrScopeMismatch      = errs.Forbidden("scope_mismatch", "value scope differs from the user's assigned scope")
	ErrOutsideScope       = errs.Forbidden("outside_scope", "value scope is outside the user's scope")
	ErrProcessNotAssigned = errs.Forbidden("process_not_assigned", "process is not assigned to the user")
	ErrNotVisible         = errs.Forbidden("not_visible", "value is not visible to the user")
)
