package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Level is the organizational granularity a user or a value is attached to.
type Level string

const (
	LevelSite        Level = "site"
	LevelSubsidiary  Level = "subsidiary"
	LevelSubdivision Level = "subdivision"
	LevelGroup       Level = "group"
)

// Levels lists every level from finest to coarsest.
var Levels = []Level{LevelSite, LevelSubsidiary, LevelSubdivision, LevelGroup}

// ParseLevel normalizes a level name.
func ParseLevel(raw string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelSite:
		return LevelSite, nil
	case LevelSubsidiary:
		return LevelSubsidiary, nil
	case LevelSubdivision:
		return LevelSubdivision, nil
	case LevelGroup:
		return LevelGroup, nil
	default:
		return "", ErrInvalidLevel
	}
}

func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// Rank orders levels: site 0, subsidiary 1, subdivision 2, group 3.
func (l Level) Rank() int {
	for i, lvl := range Levels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Coarser reports whether l sits strictly above other.
func (l Level) Coarser(other Level) bool {
	return l.Rank() > other.Rank()
}

// Scope is exactly one organizational attachment with its resolved ancestor chain.
// Zero ids mean "no entity at that level".
type Scope struct {
	Level         Level        `json:"level"`
	Name          string       `json:"name"`
	OrgID         snowflake.ID `json:"org_id"`
	SubdivisionID snowflake.ID `json:"subdivision_id,omitempty"`
	SubsidiaryID  snowflake.ID `json:"subsidiary_id,omitempty"`
	SiteID        snowflake.ID `json:"site_id,omitempty"`
}

// Key is the stable "<level>:<entity name>" identifier used for uniqueness.
func (s Scope) Key() string {
	return ScopeKey(s.Level, s.Name)
}

func ScopeKey(level Level, name string) string {
	return fmt.Sprintf("%s:%s", level, strings.TrimSpace(name))
}

// EntityID is the id of the entity the scope points at, or the organization for group.
func (s Scope) EntityID() snowflake.ID {
	switch s.Level {
	case LevelSite:
		return s.SiteID
	case LevelSubsidiary:
		return s.SubsidiaryID
	case LevelSubdivision:
		return s.SubdivisionID
	default:
		return s.OrgID
	}
}

// Contains reports whether inner is nested in outer following
// site ⊂ subsidiary ⊂ subdivision ⊂ group. A scope contains itself.
func Contains(outer, inner Scope) bool {
	if outer.OrgID == 0 || outer.OrgID != inner.OrgID {
		return false
	}
	if outer.Level.Rank() < inner.Level.Rank() {
		return false
	}

	switch outer.Level {
	case LevelGroup:
		return true
	case LevelSubdivision:
		return outer.SubdivisionID != 0 && inner.SubdivisionID == outer.SubdivisionID
	case LevelSubsidiary:
		return outer.SubsidiaryID != 0 && inner.SubsidiaryID == outer.SubsidiaryID
	case LevelSite:
		return outer.SiteID != 0 && inner.Level == LevelSite && inner.SiteID == outer.SiteID
	default:
		return false
	}
}
