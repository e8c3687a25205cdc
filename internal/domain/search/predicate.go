// Package search holds the event search model: the filter predicate,
// the relevance table and ordering, and pagination arithmetic. It is
// storage-agnostic; the database adapter compiles these values into
// parameterized SQL and the in-memory store evaluates them directly.
package search

import (
	"strings"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
)

// Criteria are the optional filters of an event search. Empty or
// whitespace-only values contribute no filter.
type Criteria struct {
	Query   string `json:"query,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Normalize trims surrounding whitespace from every field
func (c Criteria) Normalize() Criteria {
	return Criteria{
		Query:   strings.TrimSpace(c.Query),
		City:    strings.TrimSpace(c.City),
		Country: strings.TrimSpace(c.Country),
	}
}

// QueryFields are the columns a free-text query is matched against
var QueryFields = []entities.EventColumn{
	entities.EventColumnName,
	entities.EventColumnDescription,
	entities.EventColumnCity,
	entities.EventColumnCountry,
	entities.EventColumnStyle,
}

// Node is an element of a predicate tree
type Node interface {
	// Matches evaluates the node against an event. A NULL column never
	// matches, as in SQL.
	Matches(e *entities.Event) bool
}

// Contains is a case-insensitive substring test on one column
type Contains struct {
	Field entities.EventColumn `json:"field"`
	Value string               `json:"value"`
}

// Matches implements Node
func (c Contains) Matches(e *entities.Event) bool {
	v, ok := e.TextField(c.Field)
	if !ok {
		return false
	}
	return ContainsFold(v, c.Value)
}

// Or matches when any child matches
type Or struct {
	Nodes []Node `json:"or"`
}

// Matches implements Node
func (o Or) Matches(e *entities.Event) bool {
	for _, n := range o.Nodes {
		if n.Matches(e) {
			return true
		}
	}
	return false
}

// And matches when every child matches; an empty And matches everything
type And struct {
	Nodes []Node `json:"and"`
}

// Matches implements Node
func (a And) Matches(e *entities.Event) bool {
	for _, n := range a.Nodes {
		if !n.Matches(e) {
			return false
		}
	}
	return true
}

// Predicate is the filter of an event search: a conjunction of zero or
// more sub-predicates.
type Predicate struct {
	And
}

// IsEmpty reports whether the predicate is the tautology
func (p Predicate) IsEmpty() bool {
	return len(p.Nodes) == 0
}

// BuildPredicate turns search criteria into a predicate. It is pure.
func BuildPredicate(c Criteria) Predicate {
	c = c.Normalize()

	var nodes []Node
	if c.Query != "" {
		or := Or{Nodes: make([]Node, 0, len(QueryFields))}
		for _, field := range QueryFields {
			or.Nodes = append(or.Nodes, Contains{Field: field, Value: c.Query})
		}
		nodes = append(nodes, or)
	}
	if c.City != "" {
		nodes = append(nodes, Contains{Field: entities.EventColumnCity, Value: c.City})
	}
	if c.Country != "" {
		nodes = append(nodes, Contains{Field: entities.EventColumnCountry, Value: c.Country})
	}

	return Predicate{And{Nodes: nodes}}
}

// ContainsFold reports whether substr occurs in s, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// EscapeLike escapes the LIKE metacharacters of s so that it matches
// literally inside a pattern using backslash as the escape character.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsPattern returns the ILIKE pattern for a substring match on s
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}
