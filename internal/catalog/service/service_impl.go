package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/internal/catalog/domain"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Store repository.Config
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	issueRepo            repository.Repository[domain.Issue]
	criterionRepo        repository.Repository[domain.Criterion]
	indicatorRepo        repository.Repository[domain.Indicator]
	processRepo          repository.Repository[domain.Process]
	processIndicatorRepo repository.Repository[domain.ProcessIndicator]
	processCriterionRepo repository.Repository[domain.ProcessCriterion]
	selectionRepo        repository.Repository[domain.OrganizationSelection]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,

		issueRepo:            repository.ProvideStore[domain.Issue](p.DB, p.Store),
		criterionRepo:        repository.ProvideStore[domain.Criterion](p.DB, p.Store),
		indicatorRepo:        repository.ProvideStore[domain.Indicator](p.DB, p.Store),
		processRepo:          repository.ProvideStore[domain.Process](p.DB, p.Store),
		processIndicatorRepo: repository.ProvideStore[domain.ProcessIndicator](p.DB, p.Store),
		processCriterionRepo: repository.ProvideStore[domain.ProcessCriterion](p.DB, p.Store),
		selectionRepo:        repository.ProvideStore[domain.OrganizationSelection](p.DB, p.Store),
	}
}

var byCode = option.WithSortBy(option.SortBy{Column: "code"})

func (s *Service) UpsertIssue(ctx context.Context, req domain.UpsertIssueRequest) (*domain.Issue, error) {
	code, name, err := codeAndName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	existing, err := s.issueRepo.FindOne(ctx, &domain.Issue{Code: code})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		issue := &domain.Issue{Code: code, Name: name, Description: strings.TrimSpace(req.Description), CreatedAt: s.clock.Now()}
		if err := s.issueRepo.Create(ctx, issue); err != nil {
			return nil, err
		}
		return issue, nil
	}

	existing.Name = name
	existing.Description = strings.TrimSpace(req.Description)
	if _, err := s.issueRepo.Update(ctx, &domain.Issue{Code: code}, map[string]any{
		"name":        existing.Name,
		"description": existing.Description,
	}); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) UpsertCriterion(ctx context.Context, req domain.UpsertCriterionRequest) (*domain.Criterion, error) {
	code, name, err := codeAndName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}
	issueCode := strings.TrimSpace(req.IssueCode)
	if issueCode != "" {
		if err := mustExist(ctx, s.issueRepo, &domain.Issue{Code: issueCode}, domain.ErrIssueNotFound); err != nil {
			return nil, err
		}
	}

	existing, err := s.criterionRepo.FindOne(ctx, &domain.Criterion{Code: code})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		criterion := &domain.Criterion{
			Code:        code,
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			IssueCode:   issueCode,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.criterionRepo.Create(ctx, criterion); err != nil {
			return nil, err
		}
		return criterion, nil
	}

	existing.Name = name
	existing.Description = strings.TrimSpace(req.Description)
	existing.IssueCode = issueCode
	if _, err := s.criterionRepo.Update(ctx, &domain.Criterion{Code: code}, map[string]any{
		"name":        existing.Name,
		"description": existing.Description,
		"issue_code":  existing.IssueCode,
	}); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) UpsertIndicator(ctx context.Context, req domain.UpsertIndicatorRequest) (*domain.Indicator, error) {
	code, name, err := codeAndName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	issueCode := strings.TrimSpace(req.IssueCode)
	if issueCode != "" {
		if err := mustExist(ctx, s.issueRepo, &domain.Issue{Code: issueCode}, domain.ErrIssueNotFound); err != nil {
			return nil, err
		}
	}
	criterionCode := strings.TrimSpace(req.CriterionCode)
	if criterionCode != "" {
		if err := mustExist(ctx, s.criterionRepo, &domain.Criterion{Code: criterionCode}, domain.ErrCriterionNotFound); err != nil {
			return nil, err
		}
	}

	indicatorType := strings.TrimSpace(req.Type)
	if indicatorType == "" {
		indicatorType = domain.IndicatorTypePrimary
	}

	now := s.clock.Now()
	existing, err := s.indicatorRepo.FindOne(ctx, &domain.Indicator{Code: code})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		indicator := &domain.Indicator{
			Code:          code,
			Name:          name,
			Description:   strings.TrimSpace(req.Description),
			Unit:          strings.TrimSpace(req.Unit),
			Type:          indicatorType,
			IssueCode:     issueCode,
			CriterionCode: criterionCode,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.indicatorRepo.Create(ctx, indicator); err != nil {
			return nil, err
		}
		return indicator, nil
	}

	existing.Name = name
	existing.Description = strings.TrimSpace(req.Description)
	existing.Unit = strings.TrimSpace(req.Unit)
	existing.Type = indicatorType
	existing.IssueCode = issueCode
	existing.CriterionCode = criterionCode
	existing.UpdatedAt = now
	if _, err := s.indicatorRepo.Update(ctx, &domain.Indicator{Code: code}, map[string]any{
		"name":           existing.Name,
		"description":    existing.Description,
		"unit":           existing.Unit,
		"type":           existing.Type,
		"issue_code":     existing.IssueCode,
		"criterion_code": existing.CriterionCode,
		"updated_at":     now,
	}); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) UpsertProcess(ctx context.Context, req domain.UpsertProcessRequest) (*domain.Process, error) {
	code, name, err := codeAndName(req.Code, req.Name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	existing, err := s.processRepo.FindOne(ctx, &domain.Process{Code: code})
	if err != nil {
		return nil, err
	}

	process := existing
	if process == nil {
		process = &domain.Process{Code: code, Name: name, Description: strings.TrimSpace(req.Description), CreatedAt: now, UpdatedAt: now}
		if err := s.processRepo.Create(ctx, process); err != nil {
			return nil, err
		}
	} else {
		process.Name = name
		process.Description = strings.TrimSpace(req.Description)
		process.UpdatedAt = now
		if _, err := s.processRepo.Update(ctx, &domain.Process{Code: code}, map[string]any{
			"name":        process.Name,
			"description": process.Description,
			"updated_at":  now,
		}); err != nil {
			return nil, err
		}
	}

	if req.Indicators != nil {
		if err := s.SetProcessIndicators(ctx, code, req.Indicators); err != nil {
			return nil, err
		}
	}
	if req.Criteria != nil {
		if err := s.setProcessCriteria(ctx, code, req.Criteria); err != nil {
			return nil, err
		}
	}
	return process, nil
}

// SetProcessIndicators replaces the indicator links of a process, keeping
// the given order. Indicator codes are not required to exist in the catalog.
func (s *Service) SetProcessIndicators(ctx context.Context, processCode string, indicatorCodes []string) error {
	processCode = strings.TrimSpace(processCode)
	if processCode == "" {
		return domain.ErrInvalidCode
	}
	if err := mustExist(ctx, s.processRepo, &domain.Process{Code: processCode}, domain.ErrProcessNotFound); err != nil {
		return err
	}

	if _, err := s.processIndicatorRepo.Delete(ctx, &domain.ProcessIndicator{ProcessCode: processCode}); err != nil {
		return err
	}

	links := make([]*domain.ProcessIndicator, 0, len(indicatorCodes))
	for i, code := range dedupe(indicatorCodes) {
		links = append(links, &domain.ProcessIndicator{ProcessCode: processCode, IndicatorCode: code, Position: i})
	}
	return s.processIndicatorRepo.BatchCreate(ctx, links)
}

func (s *Service) setProcessCriteria(ctx context.Context, processCode string, criterionCodes []string) error {
	if _, err := s.processCriterionRepo.Delete(ctx, &domain.ProcessCriterion{ProcessCode: processCode}); err != nil {
		return err
	}
	links := make([]*domain.ProcessCriterion, 0, len(criterionCodes))
	for _, code := range dedupe(criterionCodes) {
		links = append(links, &domain.ProcessCriterion{ProcessCode: processCode, CriterionCode: code})
	}
	return s.processCriterionRepo.BatchCreate(ctx, links)
}

func (s *Service) GetIndicator(ctx context.Context, code string) (*domain.Indicator, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	indicator, err := s.indicatorRepo.FindOne(ctx, &domain.Indicator{Code: code})
	if err != nil {
		return nil, err
	}
	if indicator == nil {
		return nil, domain.ErrIndicatorNotFound
	}
	return indicator, nil
}

func (s *Service) GetProcess(ctx context.Context, code string) (*domain.Process, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}
	process, err := s.processRepo.FindOne(ctx, &domain.Process{Code: code})
	if err != nil {
		return nil, err
	}
	if process == nil {
		return nil, domain.ErrProcessNotFound
	}
	return process, nil
}

func (s *Service) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	items, err := s.processRepo.Find(ctx, &domain.Process{}, byCode)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// ListIndicators returns the catalog rows for codes, or the whole catalog
// when codes is nil. Unknown codes are dropped.
func (s *Service) ListIndicators(ctx context.Context, codes []string) ([]domain.Indicator, error) {
	opts := []option.QueryOption{byCode}
	if codes != nil {
		opts = append(opts, option.WithIn("code", codes))
	}
	items, err := s.indicatorRepo.Find(ctx, &domain.Indicator{}, opts...)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

// IndicatorCodes returns the union of indicator codes referenced by the given processes.
func (s *Service) IndicatorCodes(ctx context.Context, processCodes []string) ([]string, error) {
	links, err := s.processIndicatorRepo.Find(ctx, &domain.ProcessIndicator{},
		option.WithIn("process_code", processCodes),
		option.WithSortBy(option.SortBy{Column: "process_code"}, option.SortBy{Column: "position"}),
	)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(links))
	for _, link := range links {
		codes = append(codes, link.IndicatorCode)
	}
	return dedupe(codes), nil
}

func (s *Service) ProcessReferences(ctx context.Context, processCode, indicatorCode string) (bool, error) {
	count, err := s.processIndicatorRepo.Count(ctx, &domain.ProcessIndicator{
		ProcessCode:   strings.TrimSpace(processCode),
		IndicatorCode: strings.TrimSpace(indicatorCode),
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecordSelection appends a selection row. Earlier rows are kept as history.
func (s *Service) RecordSelection(ctx context.Context, req domain.RecordSelectionRequest) (*domain.OrganizationSelection, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	selection := &domain.OrganizationSelection{
		ID:             s.genID.Generate(),
		OrgID:          req.OrgID,
		Sector:         strings.TrimSpace(req.Sector),
		EnergyTypes:    datatypes.JSONSlice[string](trimAll(req.EnergyTypes)),
		Standards:      datatypes.JSONSlice[string](trimAll(req.Standards)),
		IssueNames:     datatypes.JSONSlice[string](trimAll(req.IssueNames)),
		CriterionNames: datatypes.JSONSlice[string](trimAll(req.CriterionNames)),
		IndicatorNames: datatypes.JSONSlice[string](trimAll(req.IndicatorNames)),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.selectionRepo.Create(ctx, selection); err != nil {
		return nil, err
	}

	s.log.Info("organization selection recorded",
		zap.String("org_id", req.OrgID.String()),
		zap.Int("indicators", len(selection.IndicatorNames)),
	)
	return selection, nil
}

// LatestSelection returns the newest selection row, nil when none exists.
// Rows created at the same instant are ordered by id.
func (s *Service) LatestSelection(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationSelection, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.selectionRepo.FindOne(ctx, &domain.OrganizationSelection{OrgID: orgID},
		option.WithSortBy(
			option.SortBy{Column: "created_at", Desc: true},
			option.SortBy{Column: "id", Desc: true},
		),
	)
}

// CatalogForOrganization resolves the indicator codes of the requested
// processes, then keeps those whose catalog name appears in the latest
// selection. Processes left without indicators are omitted.
func (s *Service) CatalogForOrganization(ctx context.Context, req domain.CatalogRequest) ([]domain.ProcessWithIndicators, error) {
	selection, err := s.LatestSelection(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	if selection == nil {
		return []domain.ProcessWithIndicators{}, nil
	}

	processOpts := []option.QueryOption{byCode}
	if !req.AllProcesses {
		processOpts = append(processOpts, option.WithIn("code", trimAll(req.ProcessCodes)))
	}
	processes, err := s.processRepo.Find(ctx, &domain.Process{}, processOpts...)
	if err != nil {
		return nil, err
	}
	if len(processes) == 0 {
		return []domain.ProcessWithIndicators{}, nil
	}

	processCodes := make([]string, 0, len(processes))
	for _, p := range processes {
		processCodes = append(processCodes, p.Code)
	}

	links, err := s.processIndicatorRepo.Find(ctx, &domain.ProcessIndicator{},
		option.WithIn("process_code", processCodes),
		option.WithSortBy(option.SortBy{Column: "process_code"}, option.SortBy{Column: "position"}),
	)
	if err != nil {
		return nil, err
	}
	criteria, err := s.processCriterionRepo.Find(ctx, &domain.ProcessCriterion{},
		option.WithIn("process_code", processCodes),
		option.WithSortBy(option.SortBy{Column: "criterion_code"}),
	)
	if err != nil {
		return nil, err
	}

	catalog, err := s.ListIndicators(ctx, nil)
	if err != nil {
		return nil, err
	}
	byIndicatorCode := make(map[string]domain.Indicator, len(catalog))
	for _, ind := range catalog {
		byIndicatorCode[ind.Code] = ind
	}
	allowed := domain.SelectedCodes(domain.NameToCode(catalog), selection.IndicatorNames)

	indicatorsByProcess := map[string][]domain.Indicator{}
	for _, link := range links {
		ind, ok := byIndicatorCode[link.IndicatorCode]
		if !ok {
			continue
		}
		if _, ok := allowed[ind.Code]; !ok {
			continue
		}
		indicatorsByProcess[link.ProcessCode] = append(indicatorsByProcess[link.ProcessCode], ind)
	}
	criteriaByProcess := map[string][]string{}
	for _, c := range criteria {
		criteriaByProcess[c.ProcessCode] = append(criteriaByProcess[c.ProcessCode], c.CriterionCode)
	}

	result := make([]domain.ProcessWithIndicators, 0, len(processes))
	for _, p := range processes {
		indicators := indicatorsByProcess[p.Code]
		if len(indicators) == 0 {
			continue
		}
		result = append(result, domain.ProcessWithIndicators{
			Process:    *p,
			Criteria:   criteriaByProcess[p.Code],
			Indicators: indicators,
		})
	}
	return result, nil
}

func mustExist[T any](ctx context.Context, repo repository.Repository[T], query *T, notFound error) error {
	count, err := repo.Count(ctx, query)
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func codeAndName(code, name string) (string, string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", "", domain.ErrInvalidCode
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", domain.ErrInvalidName
	}
	return code, name, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
