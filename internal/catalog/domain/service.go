package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/energyscope/pkg/errs"
)

type Service interface {
	UpsertIssue(ctx context.Context, req UpsertIssueRequest) (*Issue, error)
	UpsertCriterion(ctx context.Context, req UpsertCriterionRequest) (*Criterion, error)
	UpsertIndicator(ctx context.Context, req UpsertIndicatorRequest) (*Indicator, error)
	UpsertProcess(ctx context.Context, req UpsertProcessRequest) (*Process, error)
	SetProcessIndicators(ctx context.Context, processCode string, indicatorCodes []string) error

	GetIndicator(ctx context.Context, code string) (*Indicator, error)
	GetProcess(ctx context.Context, code string) (*Process, error)
	ListProcesses(ctx context.Context) ([]Process, error)
	ListIndicators(ctx context.Context, codes []string) ([]Indicator, error)
	IndicatorCodes(ctx context.Context, processCodes []string) ([]string, error)
	ProcessReferences(ctx context.Context, processCode, indicatorCode string) (bool, error)

	RecordSelection(ctx context.Context, req RecordSelectionRequest) (*OrganizationSelection, error)
	LatestSelection(ctx context.Context, orgID snowflake.ID) (*OrganizationSelection, error)
	CatalogForOrganization(ctx context.Context, req CatalogRequest) ([]ProcessWithIndicators, error)
}

type UpsertIssueRequest struct {
	Code        string
	Name        string
	Description string
}

type UpsertCriterionRequest struct {
	Code        string
	Name        string
	Description string
	IssueCode   string
}

type UpsertIndicatorRequest struct {
	Code          string
	Name          string
	Description   string
	Unit          string
	Type          string
	IssueCode     string
	CriterionCode string
}

// UpsertProcessRequest replaces the process attributes. Nil Indicators or
// Criteria leave the current links untouched.
type UpsertProcessRequest struct {
	Code        string
	Name        string
	Description string
	Indicators  []string
	Criteria    []string
}

type RecordSelectionRequest struct {
	OrgID          snowflake.ID
	Sector         string
	EnergyTypes    []string
	Standards      []string
	IssueNames     []string
	CriterionNames []string
	IndicatorNames []string
}

// CatalogRequest restricts the catalog to ProcessCodes, or to every process
// when AllProcesses is set.
type CatalogRequest struct {
	OrgID        snowflake.ID
	ProcessCodes []string
	AllProcesses bool
}

var (
	ErrInvalidCode         = errs.Validation("invalid_code", "code is required")
	ErrInvalidName         = errs.Validation("invalid_name", "name is required")
	ErrInvalidOrganization = errs.Validation("invalid_organization", "organization is required")

	ErrIndicatorNotFound = errs.NotFound("indicator_not_found", "indicator not found")
	ErrProcessNotFound   = errs.NotFound("process_not_found", "process not found")
	ErrIssueNotFound     = errs.NotFound("issue_not_found", "issue not found")
	ErrCriterionNotFound = errs.NotFound("criterion_not_found", "criterion not found")
)
