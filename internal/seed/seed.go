package seed

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/energyscope/internal/access/domain"
	catalogdomain "github.com/smallbiznis/energyscope/internal/catalog/domain"
	hierarchydomain "github.com/smallbiznis/energyscope/internal/hierarchy/domain"
	"github.com/smallbiznis/energyscope/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/energyscope/internal/period/domain"
	"github.com/smallbiznis/energyscope/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	KindIssue      = "issue"
	KindCriterion  = "criterion"
	KindIndicator  = "indicator"
	KindProcess    = "process"
	KindSelection  = "selection"
	KindAssignment = "assignment"
	KindPeriod     = "period"
)

const (
	outcomeCreated = "created"
	outcomeExists  = "exists"
	outcomeFailed  = "failed"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Hierarchy hierarchydomain.Service
	Catalog   catalogdomain.Service
	Access    accessdomain.Service
	Periods   perioddomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

// Runner applies setup files through the domain services. Rows already
// present are reported as committed so a file can be applied on every start.
type Runner struct {
	log       *zap.Logger
	hierarchy hierarchydomain.Service
	catalog   catalogdomain.Service
	access    accessdomain.Service
	periods   perioddomain.Service
	metrics   *metrics.Metrics
}

func NewRunner(p Params) *Runner {
	return &Runner{
		log:       p.Log.Named("seed"),
		hierarchy: p.Hierarchy,
		catalog:   p.Catalog,
		access:    p.Access,
		periods:   p.Periods,
		metrics:   p.Metrics,
	}
}

// ApplyFile loads path and applies it.
func (r *Runner) ApplyFile(ctx context.Context, path string) (*hierarchydomain.SetupReport, error) {
	file, err := Load(path)
	if err != nil {
		return nil, err
	}
	return r.Apply(ctx, file)
}

// Apply runs every section of file in dependency order. A failed row is
// reported and the following rows are still attempted. The returned error
// is set only when the organization itself could not be resolved.
func (r *Runner) Apply(ctx context.Context, file *File) (*hierarchydomain.SetupReport, error) {
	if file == nil || strings.TrimSpace(file.Organization.Name) == "" {
		return nil, ErrMissingOrganization
	}

	tree, err := r.hierarchy.SetupHierarchy(ctx, hierarchyRequest(file.Organization))
	report := &hierarchydomain.SetupReport{}
	if tree != nil {
		report.OrgID = tree.OrgID
		for _, row := range tree.Rows {
			r.add(ctx, report, row.Kind, row.Name, row.Err)
		}
	}
	if err != nil {
		return report, err
	}

	r.applyCatalog(ctx, report, file.Catalog)
	if file.Selection != nil {
		r.applySelection(ctx, report, *file.Selection)
	}
	for _, user := range file.Users {
		r.add(ctx, report, KindAssignment, strings.TrimSpace(user.Email), r.applyUser(ctx, report.OrgID, user))
	}
	for _, periods := range file.Periods {
		r.applyPeriods(ctx, report, periods)
	}

	failed := report.Failed()
	r.log.Info("setup applied",
		zap.String("org_id", report.OrgID.String()),
		zap.Int("rows", len(report.Rows)),
		zap.Int("failed", len(failed)),
	)
	return report, nil
}

func (r *Runner) applyCatalog(ctx context.Context, report *hierarchydomain.SetupReport, c Catalog) {
	for _, row := range c.Issues {
		_, err := r.catalog.UpsertIssue(ctx, catalogdomain.UpsertIssueRequest{
			Code: row.Code, Name: row.Name, Description: row.Description,
		})
		r.add(ctx, report, KindIssue, row.Code, err)
	}
	for _, row := range c.Criteria {
		_, err := r.catalog.UpsertCriterion(ctx, catalogdomain.UpsertCriterionRequest{
			Code: row.Code, Name: row.Name, Description: row.Description, IssueCode: row.Issue,
		})
		r.add(ctx, report, KindCriterion, row.Code, err)
	}
	for _, row := range c.Indicators {
		_, err := r.catalog.UpsertIndicator(ctx, catalogdomain.UpsertIndicatorRequest{
			Code:          row.Code,
			Name:          row.Name,
			Description:   row.Description,
			Unit:          row.Unit,
			Type:          row.Type,
			IssueCode:     row.Issue,
			CriterionCode: row.Criterion,
		})
		r.add(ctx, report, KindIndicator, row.Code, err)
	}
	for _, row := range c.Processes {
		_, err := r.catalog.UpsertProcess(ctx, catalogdomain.UpsertProcessRequest{
			Code:        row.Code,
			Name:        row.Name,
			Description: row.Description,
			Indicators:  row.Indicators,
			Criteria:    row.Criteria,
		})
		r.add(ctx, report, KindProcess, row.Code, err)
	}
}

// applySelection records a new selection unless the latest one already
// carries the same choices.
func (r *Runner) applySelection(ctx context.Context, report *hierarchydomain.SetupReport, sel Selection) {
	latest, err := r.catalog.LatestSelection(ctx, report.OrgID)
	if err != nil {
		r.add(ctx, report, KindSelection, sel.Sector, err)
		return
	}
	if latest != nil && sameSelection(*latest, sel) {
		r.record(ctx, KindSelection, outcomeExists)
		report.Add(KindSelection, sel.Sector, nil)
		return
	}

	_, err = r.catalog.RecordSelection(ctx, catalogdomain.RecordSelectionRequest{
		OrgID:          report.OrgID,
		Sector:         sel.Sector,
		EnergyTypes:    sel.EnergyTypes,
		Standards:      sel.Standards,
		IssueNames:     sel.Issues,
		CriterionNames: sel.Criteria,
		IndicatorNames: sel.Indicators,
	})
	r.add(ctx, report, KindSelection, sel.Sector, err)
}

func (r *Runner) applyUser(ctx context.Context, orgID snowflake.ID, user User) error {
	role, err := accessdomain.ParseRole(user.Role)
	if err != nil {
		return err
	}
	level, err := hierarchydomain.ParseLevel(user.Level)
	if err != nil {
		return err
	}
	_, err = r.access.SetAssignment(ctx, accessdomain.SetAssignmentRequest{
		Email:      user.Email,
		OrgID:      orgID,
		Role:       role,
		Level:      level,
		EntityName: user.Entity,
		Processes:  user.Processes,
	})
	return err
}

func (r *Runner) applyPeriods(ctx context.Context, report *hierarchydomain.SetupReport, p Periods) {
	name := strconv.Itoa(p.Year) + ":" + strings.TrimSpace(p.Type)
	periodType, err := perioddomain.ParsePeriodType(p.Type)
	if err != nil {
		r.add(ctx, report, KindPeriod, name, err)
		return
	}

	for _, n := range p.Closed {
		_, err := r.periods.CreatePeriod(ctx, perioddomain.CreatePeriodRequest{
			OrgID: report.OrgID, Year: p.Year, PeriodType: periodType, Number: n, Closed: true,
		})
		r.add(ctx, report, KindPeriod, name+":"+strconv.Itoa(n), err)
	}

	_, err = r.periods.GeneratePeriods(ctx, report.OrgID, p.Year, periodType)
	r.add(ctx, report, KindPeriod, name, err)
}

// add reports one row. A duplicate row counts as committed.
func (r *Runner) add(ctx context.Context, report *hierarchydomain.SetupReport, kind, name string, err error) {
	switch {
	case err == nil:
		r.record(ctx, kind, outcomeCreated)
	case errors.Is(err, errs.ErrDuplicate):
		r.record(ctx, kind, outcomeExists)
		err = nil
	default:
		r.record(ctx, kind, outcomeFailed)
		r.log.Warn("setup row failed",
			zap.String("kind", kind),
			zap.String("name", name),
			zap.Error(err),
		)
	}
	report.Add(kind, name, err)
}

func (r *Runner) record(ctx context.Context, kind, outcome string) {
	r.metrics.RecordSetupRow(ctx, kind, outcome)
}

func hierarchyRequest(org Organization) hierarchydomain.SetupHierarchyRequest {
	req := hierarchydomain.SetupHierarchyRequest{
		Organization: hierarchydomain.CreateOrganizationRequest{Name: org.Name, Contact: contact(org.Contact)},
	}
	for _, row := range org.Subdivisions {
		req.Subdivisions = append(req.Subdivisions, hierarchydomain.AddSubdivisionRequest{
			Name: row.Name, Location: row.Location, Contact: contact(row.Contact),
		})
	}
	for _, row := range org.Subsidiaries {
		req.Subsidiaries = append(req.Subsidiaries, hierarchydomain.AddSubsidiaryRequest{
			SubdivisionName: row.Subdivision, Name: row.Name, Contact: contact(row.Contact),
		})
	}
	for _, row := range org.Sites {
		req.Sites = append(req.Sites, hierarchydomain.AddSiteRequest{
			SubdivisionName: row.Subdivision,
			SubsidiaryName:  row.Subsidiary,
			Name:            row.Name,
			Contact:         contact(row.Contact),
		})
	}
	return req
}

func contact(c Contact) hierarchydomain.Contact {
	return hierarchydomain.Contact{
		Address:    c.Address,
		City:       c.City,
		PostalCode: c.PostalCode,
		Country:    c.Country,
		Phone:      c.Phone,
		Email:      c.Email,
	}
}

func sameSelection(latest catalogdomain.OrganizationSelection, sel Selection) bool {
	return latest.Sector == strings.TrimSpace(sel.Sector) &&
		sameNames(latest.EnergyTypes, sel.EnergyTypes) &&
		sameNames(latest.Standards, sel.Standards) &&
		sameNames(latest.IssueNames, sel.Issues) &&
		sameNames(latest.CriterionNames, sel.Criteria) &&
		sameNames(latest.IndicatorNames, sel.Indicators)
}

func sameNames(stored []string, names []string) bool {
	trimmed := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			trimmed = append(trimmed, name)
		}
	}
	return slices.Equal(stored, trimmed)
}
