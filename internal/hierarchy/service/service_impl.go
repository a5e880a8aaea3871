package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/energyscope/internal/clock"
	"github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/pkg/db/option"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"github.com/smallbiznis/energyscope/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
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

	orgRepo         repository.Repository[domain.Organization]
	subdivisionRepo repository.Repository[domain.Subdivision]
	subsidiaryRepo  repository.Repository[domain.Subsidiary]
	siteRepo        repository.Repository[domain.Site]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("hierarchy.service"),
		genID: p.GenID,
		clock: p.Clock,

		orgRepo:         repository.ProvideStore[domain.Organization](p.DB, p.Store),
		subdivisionRepo: repository.ProvideStore[domain.Subdivision](p.DB, p.Store),
		subsidiaryRepo:  repository.ProvideStore[domain.Subsidiary](p.DB, p.Store),
		siteRepo:        repository.ProvideStore[domain.Site](p.DB, p.Store),
	}
}

func (s *Service) CreateOrganization(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	existing, err := s.orgRepo.FindOne(ctx, &domain.Organization{Name: name})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrOrganizationExists
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Contact:   normalizeContact(req.Contact),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, mapDuplicate(err, domain.ErrOrganizationExists)
	}

	s.log.Info("organization created", zap.String("org_id", org.ID.String()), zap.String("name", org.Name))
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	org, err := s.orgRepo.FindOne(ctx, &domain.Organization{Name: name})
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, nil
}

// ListOrganizations returns every organization ordered by name.
func (s *Service) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	items, err := s.orgRepo.Find(ctx, &domain.Organization{},
		option.WithSortBy(option.SortBy{Column: "name"}),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetOrganizationByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	if id == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.orgRepo.FindOne(ctx, &domain.Organization{ID: id})
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, nil
}

func (s *Service) AddSubdivision(ctx context.Context, req domain.AddSubdivisionRequest) (*domain.Subdivision, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.GetOrganizationByID(ctx, req.OrgID); err != nil {
		return nil, err
	}

	subdivision := &domain.Subdivision{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Name:      name,
		Location:  strings.TrimSpace(req.Location),
		Contact:   normalizeContact(req.Contact),
		CreatedAt: s.clock.Now(),
	}
	if err := s.subdivisionRepo.Create(ctx, subdivision); err != nil {
		return nil, mapDuplicate(err, domain.ErrEntityExists)
	}
	return subdivision, nil
}

func (s *Service) AddSubsidiary(ctx context.Context, req domain.AddSubsidiaryRequest) (*domain.Subsidiary, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.GetOrganizationByID(ctx, req.OrgID); err != nil {
		return nil, err
	}

	subsidiary := &domain.Subsidiary{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Name:      name,
		Contact:   normalizeContact(req.Contact),
		CreatedAt: s.clock.Now(),
	}
	if parent := strings.TrimSpace(req.SubdivisionName); parent != "" {
		subdivision, err := s.findSubdivision(ctx, req.OrgID, parent)
		if err != nil {
			return nil, err
		}
		subsidiary.SubdivisionID = subdivision.ID
	}

	if err := s.subsidiaryRepo.Create(ctx, subsidiary); err != nil {
		return nil, mapDuplicate(err, domain.ErrEntityExists)
	}
	return subsidiary, nil
}

func (s *Service) AddSite(ctx context.Context, req domain.AddSiteRequest) (*domain.Site, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.GetOrganizationByID(ctx, req.OrgID); err != nil {
		return nil, err
	}

	site := &domain.Site{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Name:      name,
		Contact:   normalizeContact(req.Contact),
		CreatedAt: s.clock.Now(),
	}

	if parent := strings.TrimSpace(req.SubdivisionName); parent != "" {
		subdivision, err := s.findSubdivision(ctx, req.OrgID, parent)
		if err != nil {
			return nil, err
		}
		site.SubdivisionID = subdivision.ID
	}
	if parent := strings.TrimSpace(req.SubsidiaryName); parent != "" {
		subsidiary, err := s.findSubsidiary(ctx, req.OrgID, parent)
		if err != nil {
			return nil, err
		}
		// A site under a subsidiary always sits in the subsidiary's subdivision,
		// including none when the subsidiary hangs off the organization.
		if site.SubdivisionID != 0 && site.SubdivisionID != subsidiary.SubdivisionID {
			return nil, domain.ErrParentMismatch
		}
		site.SubsidiaryID = subsidiary.ID
		site.SubdivisionID = subsidiary.SubdivisionID
	}

	if err := s.siteRepo.Create(ctx, site); err != nil {
		return nil, mapDuplicate(err, domain.ErrEntityExists)
	}
	return site, nil
}

// SetupHierarchy inserts a whole tree row by row. A failed row is reported
// and the remaining rows are still attempted.
func (s *Service) SetupHierarchy(ctx context.Context, req domain.SetupHierarchyRequest) (*domain.SetupReport, error) {
	report := &domain.SetupReport{}

	org, err := s.CreateOrganization(ctx, req.Organization)
	report.Add("organization", strings.TrimSpace(req.Organization.Name), err)
	if err != nil {
		if !errors.Is(err, errs.ErrDuplicate) {
			return report, err
		}
		org, err = s.GetOrganization(ctx, req.Organization.Name)
		if err != nil {
			return report, err
		}
	}
	report.OrgID = org.ID

	for _, row := range req.Subdivisions {
		row.OrgID = org.ID
		_, err := s.AddSubdivision(ctx, row)
		report.Add(string(domain.LevelSubdivision), strings.TrimSpace(row.Name), err)
	}
	for _, row := range req.Subsidiaries {
		row.OrgID = org.ID
		_, err := s.AddSubsidiary(ctx, row)
		report.Add(string(domain.LevelSubsidiary), strings.TrimSpace(row.Name), err)
	}
	for _, row := range req.Sites {
		row.OrgID = org.ID
		_, err := s.AddSite(ctx, row)
		report.Add(string(domain.LevelSite), strings.TrimSpace(row.Name), err)
	}

	if failed := report.Failed(); len(failed) > 0 {
		s.log.Warn("hierarchy setup completed with failures",
			zap.String("org_id", org.ID.String()),
			zap.Int("rows", len(report.Rows)),
			zap.Int("failed", len(failed)),
		)
	}
	return report, nil
}

func (s *Service) Structure(ctx context.Context, orgID snowflake.ID) (*domain.Structure, error) {
	org, err := s.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byName := option.WithSortBy(option.SortBy{Column: "name"})
	subdivisions, err := s.subdivisionRepo.Find(ctx, &domain.Subdivision{OrgID: orgID}, byName)
	if err != nil {
		return nil, err
	}
	subsidiaries, err := s.subsidiaryRepo.Find(ctx, &domain.Subsidiary{OrgID: orgID}, byName)
	if err != nil {
		return nil, err
	}
	sites, err := s.siteRepo.Find(ctx, &domain.Site{OrgID: orgID}, byName)
	if err != nil {
		return nil, err
	}

	return &domain.Structure{
		Organization: *org,
		Subdivisions: deref(subdivisions),
		Subsidiaries: deref(subsidiaries),
		Sites:        deref(sites),
	}, nil
}

func (s *Service) IsComposite(ctx context.Context, orgID snowflake.ID) (bool, error) {
	structure, err := s.Structure(ctx, orgID)
	if err != nil {
		return false, err
	}
	return structure.IsComposite(), nil
}

// ResolveScopeEntities lists the entities selectable at level. The group
// level and levels without entities yield an empty list.
func (s *Service) ResolveScopeEntities(ctx context.Context, orgID snowflake.ID, level domain.Level) ([]domain.Entity, error) {
	if !level.Valid() {
		return nil, domain.ErrInvalidLevel
	}
	if level == domain.LevelGroup {
		return []domain.Entity{}, nil
	}

	structure, err := s.Structure(ctx, orgID)
	if err != nil {
		return nil, err
	}

	entities := []domain.Entity{}
	switch level {
	case domain.LevelSubdivision:
		for _, item := range structure.Subdivisions {
			entities = append(entities, domain.Entity{ID: item.ID, Name: item.Name, Level: level})
		}
	case domain.LevelSubsidiary:
		for _, item := range structure.Subsidiaries {
			entities = append(entities, domain.Entity{ID: item.ID, Name: item.Name, Level: level})
		}
	case domain.LevelSite:
		for _, item := range structure.Sites {
			entities = append(entities, domain.Entity{ID: item.ID, Name: item.Name, Level: level})
		}
	}
	return entities, nil
}

// ScopeOf resolves a level and entity name to a Scope carrying every ancestor id.
func (s *Service) ScopeOf(ctx context.Context, orgID snowflake.ID, level domain.Level, name string) (domain.Scope, error) {
	if !level.Valid() {
		return domain.Scope{}, domain.ErrInvalidLevel
	}
	org, err := s.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return domain.Scope{}, err
	}

	name = strings.TrimSpace(name)
	if level == domain.LevelGroup {
		return domain.Scope{Level: level, Name: org.Name, OrgID: org.ID}, nil
	}
	if name == "" {
		return domain.Scope{}, domain.ErrEntityRequired
	}

	scope := domain.Scope{Level: level, Name: name, OrgID: org.ID}
	switch level {
	case domain.LevelSubdivision:
		subdivision, err := s.findSubdivision(ctx, orgID, name)
		if err != nil {
			return domain.Scope{}, err
		}
		scope.SubdivisionID = subdivision.ID
	case domain.LevelSubsidiary:
		subsidiary, err := s.findSubsidiary(ctx, orgID, name)
		if err != nil {
			return domain.Scope{}, err
		}
		scope.SubsidiaryID = subsidiary.ID
		scope.SubdivisionID = subsidiary.SubdivisionID
	case domain.LevelSite:
		site, err := s.siteRepo.FindOne(ctx, &domain.Site{OrgID: orgID, Name: name})
		if err != nil {
			return domain.Scope{}, err
		}
		if site == nil {
			return domain.Scope{}, domain.ErrSiteNotFound
		}
		scope.SiteID = site.ID
		scope.SubsidiaryID = site.SubsidiaryID
		scope.SubdivisionID = site.SubdivisionID
	}
	return scope, nil
}

func (s *Service) findSubdivision(ctx context.Context, orgID snowflake.ID, name string) (*domain.Subdivision, error) {
	item, err := s.subdivisionRepo.FindOne(ctx, &domain.Subdivision{OrgID: orgID, Name: strings.TrimSpace(name)})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrSubdivisionNotFound
	}
	return item, nil
}

func (s *Service) findSubsidiary(ctx context.Context, orgID snowflake.ID, name string) (*domain.Subsidiary, error) {
	item, err := s.subsidiaryRepo.FindOne(ctx, &domain.Subsidiary{OrgID: orgID, Name: strings.TrimSpace(name)})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrSubsidiaryNotFound
	}
	return item, nil
}

func mapDuplicate(err error, target *errs.Error) error {
	if errors.Is(err, errs.ErrDuplicate) {
		return target.WithCause(err)
	}
	return err
}

func normalizeContact(c domain.Contact) domain.Contact {
	return domain.Contact{
		Address:     strings.TrimSpace(c.Address),
		City:        strings.TrimSpace(c.City),
		PostalCode:  strings.TrimSpace(c.PostalCode),
		Country:     strings.TrimSpace(c.Country),
		Phone:       strings.TrimSpace(c.Phone),
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		ManagerName: strings.TrimSpace(c.ManagerName),
	}
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
