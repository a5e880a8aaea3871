package service

import (
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/energyscope/internal/access/domain"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// NewEnforcer persists policies and role links through gorm.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

// NewMemoryEnforcer keeps policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	contributor := []string{
		domain.ActionView,
		domain.ActionDraft,
		domain.ActionCreate,
		domain.ActionSubmit,
		domain.ActionEdit,
	}
	reviewer := append(append([]string{}, contributor...), domain.ActionValidate, domain.ActionReject)

	grants := map[domain.Role][]string{
		domain.RoleContributor: contributor,
		domain.RoleValidator:   reviewer,
		domain.RoleAdmin:       reviewer,
	}

	for role, actions := range grants {
		for _, action := range actions {
			if _, err := enforcer.AddPolicy(role.Subject(), domain.ObjectIndicatorValue, action); err != nil {
				return err
			}
		}
	}
	return nil
}
