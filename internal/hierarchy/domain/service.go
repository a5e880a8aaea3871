package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetOrganization(ctx context.Context, name string) (*Organization, error)
	GetOrganizationByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	AddSubdivision(ctx context.Context, req AddSubdivisionRequest) (*Subdivision, error)
	AddSubsidiary(ctx context.Context, req AddSubsidiaryRequest) (*Subsidiary, error)
	AddSite(ctx context.Context, req AddSiteRequest) (*Site, error)
	SetupHierarchy(ctx context.Context, req SetupHierarchyRequest) (*SetupReport, error)

	Structure(ctx context.Context, orgID snowflake.ID) (*Structure, error)
	IsComposite(ctx context.Context, orgID snowflake.ID) (bool, error)
	ResolveScopeEntities(ctx context.Context, orgID snowflake.ID, level Level) ([]Entity, error)
	ScopeOf(ctx context.Context, orgID snowflake.ID, level Level, name string) (Scope, error)
}

type CreateOrganizationRequest struct {
	Name    string
	Contact Contact
}

type AddSubdivisionRequest struct {
	OrgID    snowflake.ID
	Name     string
	Location string
	Contact  Contact
}

type AddSubsidiaryRequest struct {
	OrgID           snowflake.ID
	SubdivisionName string
	Name            string
	Contact         Contact
}

type AddSiteRequest struct {
	OrgID           snowflake.ID
	SubdivisionName string
	SubsidiaryName  string
	Name            string
	Contact         Contact
}

// SetupHierarchyRequest describes a whole tree. Parents are referenced by name.
type SetupHierarchyRequest struct {
	Organization CreateOrganizationRequest
	Subdivisions []AddSubdivisionRequest
	Subsidiaries []AddSubsidiaryRequest
	Sites        []AddSiteRequest
}

// RowResult is the outcome of one row of a multi-row operation.
type RowResult struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// SetupReport collects per-row results. Failed rows never undo committed ones.
type SetupReport struct {
	OrgID snowflake.ID
	Rows  []RowResult
}

func (r *SetupReport) Add(kind, name string, err error) {
	r.Rows = append(r.Rows, RowResult{Kind: kind, Name: name, Err: err})
}

// Failed returns the rows that did not commit.
func (r *SetupReport) Failed() []RowResult {
	var failed []RowResult
	for _, row := range r.Rows {
		if row.Err != nil {
			failed = append(failed, row)
		}
	}
	return failed
}

// Err joins every row error, nil when all rows committed.
func (r *SetupReport) Err() error {
	var all []error
	for _, row := range r.Failed() {
		all = append(all, row.Err)
	}
	return errors.Join(all...)
}

// Merge appends the rows of other.
func (r *SetupReport) Merge(other *SetupReport) {
	if other == nil {
		return
	}
	r.Rows = append(r.Rows, other.Rows...)
}
