package model

import (
	"strings"
	"time"
)

// EntityType is the closed set of entity categories
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypeTemporal     EntityType = "temporal-marker"
	EntityTypeAsset        EntityType = "asset"
)

// ValidEntityType reports whether t is one of the known entity types
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypePerson, EntityTypeOrganization, EntityTypeLocation, EntityTypeTemporal, EntityTypeAsset:
		return true
	}
	return false
}

// NormalizeAlias lowercases an alias and collapses internal whitespace, so
// "John  Smith" and "john smith" compare equal
func NormalizeAlias(alias string) string {
	return strings.ToLower(strings.Join(strings.Fields(alias), " "))
}

// StateValue is one entry of an entity state overlay. Dates are kept as the
// raw extracted text; ParsedAt is only set when the text matches a known
// layout. Seq is the workspace extraction sequence used to order writes when
// neither side carries a parseable timestamp.
type StateValue struct {
	Value    string     `json:"value"`
	RawDate  string     `json:"raw_date,omitempty"`
	ParsedAt *time.Time `json:"parsed_at,omitempty"`
	CaseID   string     `json:"case_id,omitempty"`
	Seq      uint64     `json:"seq"`
}

// Entity represents an actor in the workspace graph
type Entity struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Type    EntityType            `json:"entity_type"`
	Aliases []string              `json:"aliases,omitempty"`
	Roles   []string              `json:"roles,omitempty"`
	States  map[string]StateValue `json:"states,omitempty"`
	Cases   []string              `json:"involved_cases,omitempty"`
	Chunks  []string              `json:"source_chunks,omitempty"`
}

// HasAlias reports whether the entity already carries an equivalent alias
func (e *Entity) HasAlias(alias string) bool {
	normalized := NormalizeAlias(alias)
	for _, a := range e.Aliases {
		if NormalizeAlias(a) == normalized {
			return true
		}
	}
	return false
}

// AddAlias appends alias unless an equivalent one exists. The first seen
// casing is kept for display.
func (e *Entity) AddAlias(alias string) {
	if strings.TrimSpace(alias) == "" || e.HasAlias(alias) {
		return
	}
	e.Aliases = append(e.Aliases, strings.TrimSpace(alias))
}

// AddRole appends role preserving first seen order, skipping duplicates
func (e *Entity) AddRole(role string) {
	if strings.TrimSpace(role) == "" {
		return
	}
	for _, r := range e.Roles {
		if r == role {
			return
		}
	}
	e.Roles = append(e.Roles, role)
}

// AddCase records the entity's involvement in a case. Adding a known case is
// a no-op, so reprocessing the same batch does not grow the set.
func (e *Entity) AddCase(caseID string) {
	if caseID == "" {
		return
	}
	for _, c := range e.Cases {
		if c == caseID {
			return
		}
	}
	e.Cases = append(e.Cases, caseID)
}

// AddChunk records the source chunk the entity was extracted from
func (e *Entity) AddChunk(chunkID string) {
	if chunkID == "" {
		return
	}
	for _, c := range e.Chunks {
		if c == chunkID {
			return
		}
	}
	e.Chunks = append(e.Chunks, chunkID)
}

// RoleOverlap counts the roles the entity shares with the given list
func (e *Entity) RoleOverlap(roles []string) int {
	overlap := 0
	for _, r := range roles {
		for _, own := range e.Roles {
			if own == r {
				overlap++
				break
			}
		}
	}
	return overlap
}

// Clone returns a deep copy of the entity
func (e *Entity) Clone() *Entity {
	clone := &Entity{
		ID:      e.ID,
		Name:    e.Name,
		Type:    e.Type,
		Aliases: append([]string(nil), e.Aliases...),
		Roles:   append([]string(nil), e.Roles...),
		Cases:   append([]string(nil), e.Cases...),
		Chunks:  append([]string(nil), e.Chunks...),
	}
	if e.States != nil {
		clone.States = make(map[string]StateValue, len(e.States))
		for k, v := range e.States {
			if v.ParsedAt != nil {
				parsed := *v.ParsedAt
				v.ParsedAt = &parsed
			}
			clone.States[k] = v
		}
	}
	return clone
}

// Ref returns the read-only projection handed to the similarity oracle
func (e *Entity) Ref() EntityRef {
	return EntityRef{
		ID:      e.ID,
		Name:    e.Name,
		Type:    e.Type,
		Aliases: append([]string(nil), e.Aliases...),
		Roles:   append([]string(nil), e.Roles...),
	}
}

// EntityRef is the identity-bearing projection of an entity used for
// similarity scoring
type EntityRef struct {
	ID      string     `json:"id,omitempty"`
	Name    string     `json:"name"`
	Type    EntityType `json:"entity_type"`
	Aliases []string   `json:"aliases,omitempty"`
	Roles   []string   `json:"roles,omitempty"`
}

// Text renders the reference as the text an embedding model scores
func (r EntityRef) Text() string {
	parts := []string{r.Name}
	for _, a := range r.Aliases {
		if NormalizeAlias(a) != NormalizeAlias(r.Name) {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// dateLayouts are the formats ParseWhen recognizes. Anything else stays raw.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02 January 2006",
	"January 2, 2006",
	"2006-01",
	"2006",
}

// ParseWhen attempts to parse raw date text. It returns nil when no known
// layout matches, which keeps fuzzy dates ("spring 2018") lossless.
func ParseWhen(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
