package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/smallbiznis/energyscope/internal/access/domain"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	"github.com/smallbiznis/energyscope/internal/clock"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/internal/observability/metrics"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Store     repository.Config
	Enforcer  *casbin.SyncedEnforcer
	Hierarchy hierarchydomain.Service
	Catalog   catalogdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	enforcer  *casbin.SyncedEnforcer
	hierarchy hierarchydomain.Service
	catalog   catalogdomain.Service
	metrics   *metrics.Metrics

	assignmentRepo repository.Repository[domain.UserAssignment]
	processRepo    repository.Repository[domain.UserProcess]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("access.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		enforcer:  p.Enforcer,
		hierarchy: p.Hierarchy,
		catalog:   p.Catalog,
		metrics:   p.Metrics,

		assignmentRepo: repository.ProvideStore[domain.UserAssignment](p.DB, p.Store),
		processRepo:    repository.ProvideStore[domain.UserProcess](p.DB, p.Store),
	}
}

// SetAssignment moves a user to the requested role, scope and process set.
// Processes are diffed against the stored rows so the user never goes
// through an empty assignment; re-inserting an existing pair is a no-op.
func (s *Service) SetAssignment(ctx context.Context, req domain.SetAssignmentRequest) (*domain.Assignment, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	role, err := domain.ParseRole(string(req.Role))
	if err != nil {
		return nil, err
	}
	level, err := hierarchydomain.ParseLevel(string(req.Level))
	if err != nil {
		return nil, err
	}

	processes := uniqueSorted(req.Processes)
	if role == domain.RoleAdmin {
		if level != hierarchydomain.LevelGroup {
			return nil, domain.ErrAdminLevel
		}
		if len(processes) > 0 {
			return nil, domain.ErrAdminProcesses
		}
	} else if len(processes) == 0 {
		return nil, domain.ErrProcessesRequired
	}
	for _, code := range processes {
		if _, err := s.catalog.GetProcess(ctx, code); err != nil {
			return nil, err
		}
	}

	scope, err := s.hierarchy.ScopeOf(ctx, req.OrgID, level, req.EntityName)
	if err != nil {
		return nil, err
	}
	entityName := scope.Name
	if level == hierarchydomain.LevelGroup {
		entityName = ""
	}

	now := s.clock.Now()
	existing, err := s.assignmentRepo.FindOne(ctx, &domain.UserAssignment{UserEmail: email})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := s.assignmentRepo.Create(ctx, &domain.UserAssignment{
			UserEmail:  email,
			OrgID:      req.OrgID,
			Role:       role,
			Level:      level,
			EntityName: entityName,
			CreatedAt:  now,
			UpdatedAt:  now,
		}); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.assignmentRepo.Update(ctx, &domain.UserAssignment{UserEmail: email}, map[string]any{
			"org_id":      req.OrgID,
			"role":        role,
			"level":       level,
			"entity_name": entityName,
			"updated_at":  now,
		}); err != nil {
			return nil, err
		}
	}

	current, err := s.processCodes(ctx, email)
	if err != nil {
		return nil, err
	}
	add, remove := domain.Diff(current, processes)

	if len(add) > 0 {
		rows := make([]*domain.UserProcess, 0, len(add))
		for _, code := range add {
			rows = append(rows, &domain.UserProcess{ID: s.genID.Generate(), UserEmail: email, ProcessCode: code, CreatedAt: now})
		}
		if err := s.processRepo.CreateIgnoreConflict(ctx, rows); err != nil {
			return nil, err
		}
	}
	if len(remove) > 0 {
		if _, err := s.processRepo.Delete(ctx, &domain.UserProcess{UserEmail: email}, option.WithIn("process_code", remove)); err != nil {
			return nil, err
		}
	}

	if err := s.ensureGrouping(email, role, req.OrgID); err != nil {
		return nil, err
	}

	s.log.Info("user assignment set",
		zap.String("user", email),
		zap.String("role", string(role)),
		zap.String("scope", scope.Key()),
		zap.Strings("added", add),
		zap.Strings("removed", remove),
	)

	return &domain.Assignment{
		UserEmail: email,
		OrgID:     req.OrgID,
		Role:      role,
		Scope:     scope,
		Processes: processes,
	}, nil
}

func (s *Service) GetAssignment(ctx context.Context, email string) (*domain.Assignment, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}

	row, err := s.assignmentRepo.FindOne(ctx, &domain.UserAssignment{UserEmail: email})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrAssignmentNotFound
	}

	scope, err := s.hierarchy.ScopeOf(ctx, row.OrgID, row.Level, row.EntityName)
	if err != nil {
		return nil, err
	}
	processes, err := s.processCodes(ctx, email)
	if err != nil {
		return nil, err
	}

	return &domain.Assignment{
		UserEmail: email,
		OrgID:     row.OrgID,
		Role:      row.Role,
		Scope:     scope,
		Processes: processes,
	}, nil
}

func (s *Service) VisibleValues(ctx context.Context, a domain.Assignment) (domain.Visibility, error) {
	if a.Role == domain.RoleAdmin {
		return domain.NewVisibility(a, nil), nil
	}
	codes, err := s.catalog.IndicatorCodes(ctx, a.Processes)
	if err != nil {
		return domain.Visibility{}, err
	}
	return domain.NewVisibility(a, codes), nil
}

// Authorize checks the role permission of action in the user's organization.
func (s *Service) Authorize(ctx context.Context, a domain.Assignment, action string) error {
	if err := s.ensureGrouping(a.UserEmail, a.Role, a.OrgID); err != nil {
		return err
	}
	allowed, err := s.enforcer.Enforce(a.UserEmail, orgDomain(a.OrgID), domain.ObjectIndicatorValue, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(ctx, a, action, domain.ErrRoleNotAllowed.Code)
		return domain.ErrRoleNotAllowed
	}
	return nil
}

// CanAct checks the role permission, then the scope rule of the action:
// entry actions need the exact assigned scope, review actions need containment.
func (s *Service) CanAct(ctx context.Context, a domain.Assignment, action string, valueScope hierarchydomain.Scope) error {
	if err := s.Authorize(ctx, a, action); err != nil {
		return err
	}
	if valueScope.OrgID != a.OrgID {
		s.denied(ctx, a, action, domain.ErrOutsideScope.Code)
		return domain.ErrOutsideScope
	}

	switch action {
	case domain.ActionValidate, domain.ActionReject, domain.ActionView:
		if a.Role == domain.RoleAdmin || hierarchydomain.Contains(a.Scope, valueScope) {
			return nil
		}
		s.denied(ctx, a, action, domain.ErrOutsideScope.Code)
		return domain.ErrOutsideScope
	default:
		if a.Scope.Key() == valueScope.Key() {
			return nil
		}
		s.denied(ctx, a, action, domain.ErrScopeMismatch.Code)
		return domain.ErrScopeMismatch
	}
}

func (s *Service) LevelSelector(ctx context.Context, a domain.Assignment) (domain.Selector, error) {
	structure, err := s.hierarchy.Structure(ctx, a.OrgID)
	if err != nil {
		return domain.Selector{}, err
	}
	return domain.NewSelector(a, *structure), nil
}

func (s *Service) processCodes(ctx context.Context, email string) ([]string, error) {
	rows, err := s.processRepo.Find(ctx, &domain.UserProcess{UserEmail: email},
		option.WithSortBy(option.SortBy{Column: "process_code"}),
	)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.ProcessCode)
	}
	return codes, nil
}

func (s *Service) ensureGrouping(subject string, role domain.Role, orgID snowflake.ID) error {
	dom := orgDomain(orgID)
	roleName := role.Subject()

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 3 {
			continue
		}
		if rule[1] != roleName || rule[2] != dom {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
				return err
			}
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, dom)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, dom)
	return err
}

func (s *Service) denied(ctx context.Context, a domain.Assignment, action, reason string) {
	s.metrics.RecordDenied(ctx, action, reason)
	s.log.Warn("access denied",
		zap.String("user", a.UserEmail),
		zap.String("role", string(a.Role)),
		zap.String("scope", a.Scope.Key()),
		zap.String("action", action),
		zap.String("reason", reason),
	)
}

func orgDomain(orgID snowflake.ID) string {
	return fmt.Sprintf("org:%s", orgID.String())
}

func uniqueSorted(values []string) []string {
	set := map[string]struct{}{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
