package search

import (
	"github.com/swingfinder/festival-finder/internal/domain/entities"
)

// RankTier assigns a relevance rank to a query match on one column
type RankTier struct {
	Field entities.EventColumn
	Rank  float64
}

// NoMatchRank is the rank of a row matching no tier, and of every row
// when results are not ranked.
const NoMatchRank = 0.0

// rankTable is evaluated in order; the first matching tier wins. style
// is tested before city even though city ranks higher, so a row
// matching both ranks 0.5.
var rankTable = []RankTier{
	{Field: entities.EventColumnName, Rank: 1.0},
	{Field: entities.EventColumnDescription, Rank: 0.8},
	{Field: entities.EventColumnStyle, Rank: 0.5},
	{Field: entities.EventColumnCity, Rank: 0.6},
	{Field: entities.EventColumnCountry, Rank: 0.4},
}

// RankTable returns the relevance tiers in precedence order
func RankTable() []RankTier {
	out := make([]RankTier, len(rankTable))
	copy(out, rankTable)
	return out
}

// Rank computes the relevance rank of e for query
func Rank(e *entities.Event, query string) float64 {
	if query == "" {
		return NoMatchRank
	}
	for _, tier := range rankTable {
		if (Contains{Field: tier.Field, Value: query}).Matches(e) {
			return tier.Rank
		}
	}
	return NoMatchRank
}

// MatchedField maps a rank back to the column whose tier produced it
func MatchedField(rank float64) (entities.EventColumn, bool) {
	for _, tier := range rankTable {
		if tier.Rank == rank {
			return tier.Field, true
		}
	}
	return "", false
}

// SortKey is one term of an ORDER BY
type SortKey struct {
	Field string
	Order SortOrder
	Nulls NullsOrder
}

// RankKey is the synthetic sort field carrying the relevance rank
const RankKey = "search_rank"

// Ordering is the resolved sort of a search
type Ordering struct {
	SortBy    SortBy    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
	// Ranked is set when rows are ordered by relevance; RankQuery is the
	// text ranked against.
	Ranked    bool   `json:"ranked"`
	RankQuery string `json:"rank_query,omitempty"`
}

// ResolveOrdering resolves sort parameters. It never fails: unknown
// sortBy values and relevance without a query fall back to start date
// ascending.
func ResolveOrdering(sortBy, sortOrder, query string) Ordering {
	by, ok := ParseSortBy(sortBy)
	query = normalizeQuery(query)

	switch {
	case ok && by == SortByDate:
		return Ordering{SortBy: SortByDate, SortOrder: ParseSortOrder(sortOrder)}
	case ok && by == SortByRelevance && query != "":
		return Ordering{SortBy: SortByRelevance, SortOrder: SortOrderDesc, Ranked: true, RankQuery: query}
	default:
		return Ordering{SortBy: SortByDate, SortOrder: SortOrderAsc}
	}
}

// Keys returns the full ORDER BY, ending with id so that pages are
// stable across identical requests.
func (o Ordering) Keys() []SortKey {
	fromDate := string(entities.EventColumnFromDate)
	id := string(entities.EventColumnID)

	if o.Ranked {
		return []SortKey{
			{Field: RankKey, Order: SortOrderDesc, Nulls: NullsLast},
			{Field: fromDate, Order: SortOrderAsc, Nulls: NullsLast},
			{Field: id, Order: SortOrderAsc, Nulls: NullsLast},
		}
	}
	return []SortKey{
		{Field: fromDate, Order: o.SortOrder, Nulls: NullsLast},
		{Field: id, Order: SortOrderAsc, Nulls: NullsLast},
	}
}

// RankOf returns the rank of e under this ordering
func (o Ordering) RankOf(e *entities.Event) float64 {
	if !o.Ranked {
		return NoMatchRank
	}
	return Rank(e, o.RankQuery)
}

func normalizeQuery(q string) string {
	return Criteria{Query: q}.Normalize().Query
}
