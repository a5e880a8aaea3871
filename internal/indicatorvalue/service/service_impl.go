package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/energyscope/internal/access/domain"
	auditdomain "github.com/smallbiznis/energyscope/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/config"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/internal/identity"
	"github.com/smallbiznis/energyscope/internal/indicatorvalue/domain"
	"github.com/smallbiznis/energyscope/internal/observability/logger"
	"github.com/smallbiznis/energyscope/internal/observability/metrics"
	"github.com/smallbiznis/energyscope/internal/observability/tracing"
	perioddomain "github.com/smallbiznis/energyscope/internal/period/domain"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/db/pagination"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
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
	Access    accessdomain.Service
	Catalog   catalogdomain.Service
	Periods   perioddomain.Service
	Hierarchy hierarchydomain.Service
	Audit     auditdomain.Service

	Identity   identity.Provider              `optional:"true"`
	Workflow   *metrics.Workflow              `optional:"true"`
	Collection *config.CollectionConfigHolder `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	access     accessdomain.Service
	catalog    catalogdomain.Service
	periods    perioddomain.Service
	hierarchy  hierarchydomain.Service
	audit      auditdomain.Service
	identity   identity.Provider
	workflow   *metrics.Workflow
	collection *config.CollectionConfigHolder

	valueRepo repository.Repository[domain.IndicatorValue]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("indicatorvalue.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		access:     p.Access,
		catalog:    p.Catalog,
		periods:    p.Periods,
		hierarchy:  p.Hierarchy,
		audit:      p.Audit,
		identity:   p.Identity,
		workflow:   p.Workflow,
		collection: p.Collection,

		valueRepo: repository.ProvideStore[domain.IndicatorValue](p.DB, p.Store),
	}
}

// SaveDraft stores a value that is not yet submitted for review.
func (s *Service) SaveDraft(ctx context.Context, req domain.CreateValueRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.SaveDraft", attribute.String("indicator", req.IndicatorCode))
	defer func() { tracing.End(span, err) }()

	if !s.collectionConfig().AllowDrafts {
		return nil, domain.ErrDraftsDisabled
	}
	return s.create(ctx, req, domain.StatusDraft)
}

// CreateValue stores a value directly as submitted.
func (s *Service) CreateValue(ctx context.Context, req domain.CreateValueRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.CreateValue", attribute.String("indicator", req.IndicatorCode))
	defer func() { tracing.End(span, err) }()

	return s.create(ctx, req, domain.StatusSubmitted)
}

func (s *Service) create(ctx context.Context, req domain.CreateValueRequest, status domain.Status) (*domain.IndicatorValue, error) {
	submitter, err := s.actor(ctx, req.Submitter)
	if err != nil {
		return nil, err
	}
	if err := ensureFinite(req.Value); err != nil {
		return nil, err
	}
	indicatorCode := strings.TrimSpace(req.IndicatorCode)
	if indicatorCode == "" {
		return nil, domain.ErrInvalidIndicator
	}
	processCode := strings.TrimSpace(req.ProcessCode)
	if processCode == "" {
		return nil, domain.ErrInvalidProcess
	}
	if req.PeriodID == 0 {
		return nil, domain.ErrInvalidPeriod
	}

	assignment, err := s.access.GetAssignment(ctx, submitter)
	if err != nil {
		return nil, err
	}
	if req.OrgID != 0 && req.OrgID != assignment.OrgID {
		return nil, accessdomain.ErrOutsideScope
	}

	scope := assignment.Scope
	if req.Level != "" {
		scope, err = s.hierarchy.ScopeOf(ctx, assignment.OrgID, req.Level, req.EntityName)
		if err != nil {
			return nil, err
		}
	}

	permission, label := accessdomain.ActionCreate, "create"
	if status == domain.StatusDraft {
		permission, label = accessdomain.ActionDraft, "draft"
	}
	if err := s.access.CanAct(ctx, *assignment, permission, scope); err != nil {
		return nil, err
	}

	period, err := s.periods.GetPeriod(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if period.OrgID != assignment.OrgID {
		return nil, domain.ErrPeriodMismatch
	}
	if err := period.EnsureOpen(); err != nil {
		return nil, err
	}

	indicator, err := s.catalog.GetIndicator(ctx, indicatorCode)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProcess(ctx, processCode); err != nil {
		return nil, err
	}
	referenced, err := s.catalog.ProcessReferences(ctx, processCode, indicatorCode)
	if err != nil {
		return nil, err
	}
	if !referenced {
		return nil, domain.ErrIndicatorNotInScope
	}
	if !assignment.HasProcess(processCode) {
		return nil, accessdomain.ErrProcessNotAssigned
	}

	existing, err := s.valueRepo.FindOne(ctx, &domain.IndicatorValue{
		PeriodID:      period.ID,
		IndicatorCode: indicatorCode,
		ScopeKey:      scope.Key(),
		SubmittedBy:   submitter,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrValueExists
	}

	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = indicator.Unit
	}

	now := s.clock.Now()
	value := &domain.IndicatorValue{
		ID:            s.genID.Generate(),
		PeriodID:      period.ID,
		IndicatorCode: indicatorCode,
		ProcessCode:   processCode,
		Value:         req.Value,
		Unit:          unit,
		Comment:       strings.TrimSpace(req.Comment),
		Status:        status,
		SubmittedBy:   submitter,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	value.SetScope(scope)
	if status == domain.StatusSubmitted {
		value.SubmittedAt = &now
	}

	// The unique index catches submissions racing past the check above.
	if err := s.valueRepo.Create(ctx, value); err != nil {
		if errs.KindOf(err) == errs.KindDuplicate {
			return nil, domain.ErrValueExists.WithCause(err)
		}
		return nil, err
	}

	s.recordTransition(ctx, value, submitter, label, "")
	return value, nil
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.Submit", attribute.String("value_id", req.ValueID.String()))
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, req.ValueID, req.Actor, domain.ActionSubmit, accessdomain.ActionSubmit,
		func(_ *domain.IndicatorValue, now time.Time) (map[string]any, error) {
			return map[string]any{
				"submitted_at":     now,
				"rejection_reason": "",
			}, nil
		})
}

// EditValue replaces the figure and comment and sends the value back for review.
func (s *Service) EditValue(ctx context.Context, req domain.EditValueRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.EditValue", attribute.String("value_id", req.ValueID.String()))
	defer func() { tracing.End(span, err) }()

	if err := ensureFinite(req.Value); err != nil {
		return nil, err
	}
	return s.transition(ctx, req.ValueID, req.Editor, domain.ActionEdit, accessdomain.ActionEdit,
		func(_ *domain.IndicatorValue, now time.Time) (map[string]any, error) {
			return map[string]any{
				"value":            req.Value,
				"comment":          strings.TrimSpace(req.Comment),
				"submitted_at":     now,
				"rejection_reason": "",
				"validated_by":     "",
				"validated_at":     nil,
			}, nil
		})
}

func (s *Service) Validate(ctx context.Context, req domain.ValidateRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.Validate", attribute.String("value_id", req.ValueID.String()))
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, req.ValueID, req.Validator, domain.ActionValidate, accessdomain.ActionValidate,
		func(_ *domain.IndicatorValue, now time.Time) (map[string]any, error) {
			return map[string]any{"validated_at": now}, nil
		})
}

func (s *Service) Reject(ctx context.Context, req domain.RejectRequest) (value *domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.Reject", attribute.String("value_id", req.ValueID.String()))
	defer func() { tracing.End(span, err) }()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}
	return s.transition(ctx, req.ValueID, req.Validator, domain.ActionReject, accessdomain.ActionReject,
		func(_ *domain.IndicatorValue, now time.Time) (map[string]any, error) {
			return map[string]any{
				"validated_at":     now,
				"rejection_reason": reason,
			}, nil
		})
}

type patchFunc func(current *domain.IndicatorValue, now time.Time) (map[string]any, error)

// transition applies one workflow action. The update is guarded on the status
// that was read so a concurrent move surfaces as ErrStaleValue.
func (s *Service) transition(ctx context.Context, id snowflake.ID, rawActor string, action domain.Action, permission string, patch patchFunc) (*domain.IndicatorValue, error) {
	actor, err := s.actor(ctx, rawActor)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	current, assignment, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAct(ctx, *assignment, permission, current.Scope()); err != nil {
		return nil, err
	}

	next, err := domain.Next(current.Status, action)
	if err != nil {
		return nil, err
	}

	if action == domain.ActionEdit || action == domain.ActionSubmit {
		period, err := s.periods.GetPeriod(ctx, current.PeriodID)
		if err != nil {
			return nil, err
		}
		if err := period.EnsureOpen(); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	changes, err := patch(current, now)
	if err != nil {
		return nil, err
	}
	changes["status"] = next
	changes["updated_at"] = now
	if action == domain.ActionValidate || action == domain.ActionReject {
		changes["validated_by"] = actor
	}

	rows, err := s.valueRepo.Update(ctx, &domain.IndicatorValue{ID: current.ID, Status: current.Status}, changes)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrStaleValue
	}

	updated, err := s.valueRepo.FindOne(ctx, &domain.IndicatorValue{ID: current.ID})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrValueNotFound
	}

	s.recordTransition(ctx, updated, actor, string(action), current.Status)
	return updated, nil
}

func (s *Service) GetValue(ctx context.Context, viewer string, id snowflake.ID) (*domain.IndicatorValue, error) {
	viewer, err := s.actor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	value, _, err := s.loadVisible(ctx, viewer, id)
	return value, err
}

// History returns the audit trail of a value, oldest first.
func (s *Service) History(ctx context.Context, viewer string, id snowflake.ID) ([]auditdomain.AuditLog, error) {
	value, err := s.GetValue(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	var (
		out   []auditdomain.AuditLog
		token string
	)
	for {
		page, err := s.audit.List(ctx, auditdomain.ListAuditLogRequest{
			Pagination: pagination.Pagination{PageToken: token, PageSize: 250},
			OrgID:      value.OrgID,
			TargetType: auditdomain.TargetIndicatorValue,
			TargetID:   value.ID.String(),
			Oldest:     true,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.AuditLogs...)
		if !page.HasMore || page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// ListVisible returns the values the viewer may see, newest first.
func (s *Service) ListVisible(ctx context.Context, req domain.ListVisibleRequest) (values []domain.IndicatorValue, err error) {
	ctx, span := tracing.Start(ctx, "indicatorvalue.ListVisible")
	defer func() { tracing.End(span, err) }()

	viewer, err := s.actor(ctx, req.Viewer)
	if err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	assignment, err := s.access.GetAssignment(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, *assignment, accessdomain.ActionView); err != nil {
		return nil, err
	}
	visibility, err := s.access.VisibleValues(ctx, *assignment)
	if err != nil {
		return nil, err
	}

	items, err := s.valueRepo.Find(ctx, &domain.IndicatorValue{
		PeriodID:      req.PeriodID,
		IndicatorCode: strings.TrimSpace(req.IndicatorCode),
		ProcessCode:   strings.TrimSpace(req.ProcessCode),
		Status:        req.Status,
	},
		visibility,
		option.WithSortBy(option.SortBy{Column: "created_at", Desc: true}, option.SortBy{Column: "id", Desc: true}),
		option.WithLimit(req.Limit),
	)
	if err != nil {
		return nil, err
	}

	values = make([]domain.IndicatorValue, 0, len(items))
	for _, item := range items {
		if item == nil || !visibility.Allows(item.Ref()) {
			continue
		}
		values = append(values, *item)
	}
	return values, nil
}

func (s *Service) loadVisible(ctx context.Context, actor string, id snowflake.ID) (*domain.IndicatorValue, *accessdomain.Assignment, error) {
	value, err := s.valueRepo.FindOne(ctx, &domain.IndicatorValue{ID: id})
	if err != nil {
		return nil, nil, err
	}
	if value == nil {
		return nil, nil, domain.ErrValueNotFound
	}

	assignment, err := s.access.GetAssignment(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	visibility, err := s.access.VisibleValues(ctx, *assignment)
	if err != nil {
		return nil, nil, err
	}
	if !visibility.Allows(value.Ref()) {
		logger.WithContext(ctx, s.log).Warn("indicator value not visible",
			zap.String("user", actor),
			zap.String("value_id", value.ID.String()),
			zap.String("scope", value.ScopeKey),
		)
		return nil, nil, accessdomain.ErrNotVisible
	}
	return value, assignment, nil
}

func (s *Service) recordTransition(ctx context.Context, value *domain.IndicatorValue, actor, action string, from domain.Status) {
	metadata := map[string]any{
		"period_id":      value.PeriodID.String(),
		"indicator_code": value.IndicatorCode,
		"process_code":   value.ProcessCode,
		"scope_key":      value.ScopeKey,
	}
	if value.Value != nil {
		metadata["value"] = *value.Value
	}
	if value.RejectionReason != "" {
		metadata["reason"] = value.RejectionReason
	}

	log := logger.WithContext(ctx, s.log)
	if _, err := s.audit.Record(ctx, auditdomain.Entry{
		OrgID:      value.OrgID,
		Actor:      actor,
		Action:     "indicator_value." + action,
		TargetType: auditdomain.TargetIndicatorValue,
		TargetID:   value.ID.String(),
		FromStatus: string(from),
		ToStatus:   string(value.Status),
		Metadata:   metadata,
	}); err != nil {
		log.Warn("failed to record value transition", zap.String("value_id", value.ID.String()), zap.Error(err))
	}

	s.workflow.Transition(action, string(value.Status))
	log.Info("indicator_value."+string(value.Status),
		zap.String("value_id", value.ID.String()),
		zap.String("actor", actor),
		zap.String("action", action),
		zap.String("from", string(from)),
		zap.String("scope", value.ScopeKey),
		zap.String("indicator", value.IndicatorCode),
	)
}

// actor returns the explicit user, or the signed-in identity when empty.
func (s *Service) actor(ctx context.Context, explicit string) (string, error) {
	if email := accessdomain.NormalizeEmail(explicit); email != "" {
		return email, nil
	}
	if s.identity == nil {
		return "", identity.ErrSignedOut
	}
	return identity.Require(ctx, s.identity)
}

func (s *Service) collectionConfig() config.CollectionConfig {
	if s.collection == nil {
		return config.DefaultCollectionConfig()
	}
	return s.collection.Get()
}

func ensureFinite(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return domain.ErrInvalidValue
	}
	return nil
}
