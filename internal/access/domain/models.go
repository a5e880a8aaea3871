// Package domain contains user assignments and the scope and role rules
// deciding which indicator values a user may see or act upon.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
)

type Role string

const (
	RoleContributor Role = "contributor"
	RoleValidator   Role = "validator"
	RoleAdmin       Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleContributor, RoleValidator, RoleAdmin:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Subject is the casbin role name.
func (r Role) Subject() string { return "role:" + string(r) }

// UserAssignment is the single role and scope of a user.
type UserAssignment struct {
	UserEmail  string                `gorm:"primaryKey;type:text" json:"user_email"`
	OrgID      snowflake.ID          `gorm:"not null;index" json:"org_id"`
	Role       Role                  `gorm:"type:text;not null" json:"role"`
	Level      hierarchydomain.Level `gorm:"type:text;not null" json:"level"`
	EntityName string                `gorm:"type:text" json:"entity_name,omitempty"`
	CreatedAt  time.Time             `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time             `gorm:"not null" json:"updated_at"`
}

func (UserAssignment) TableName() string { return "user_assignments" }

// UserProcess grants a contributor or validator one process.
type UserProcess struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserEmail   string       `gorm:"type:text;not null;uniqueIndex:ux_user_processes,priority:1" json:"user_email"`
	ProcessCode string       `gorm:"type:text;not null;uniqueIndex:ux_user_processes,priority:2" json:"process_code"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (UserProcess) TableName() string { return "user_processes" }

// Assignment is the resolved view of a user's authority.
type Assignment struct {
	UserEmail string                `json:"user_email"`
	OrgID     snowflake.ID          `json:"org_id"`
	Role      Role                  `json:"role"`
	Scope     hierarchydomain.Scope `json:"scope"`
	Processes []string              `json:"processes"`
}

// HasProcess reports whether the assignment grants process. Admins hold every process.
func (a Assignment) HasProcess(code string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	for _, p := range a.Processes {
		if p == code {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Diff returns the codes to insert and to delete to move current to target.
func Diff(current, target []string) (add, remove []string) {
	cur := toSet(current)
	tgt := toSet(target)
	for code := range tgt {
		if _, ok := cur[code]; !ok {
			add = append(add, code)
		}
	}
	for code := range cur {
		if _, ok := tgt[code]; !ok {
			remove = append(remove, code)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)
	return add, remove
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
