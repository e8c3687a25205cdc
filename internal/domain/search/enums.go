package search

import (
	"database/sql"
	"strings"
)

// SortBy selects the primary ordering of search results
type SortBy string

const (
	SortByDate      SortBy = "date"
	SortByRelevance SortBy = "relevance"
)

// ParseSortBy parses a sortBy parameter case-insensitively. ok is false
// for unrecognized values.
func ParseSortBy(s string) (sortBy SortBy, ok bool) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortByDate:
		return SortByDate, true
	case SortByRelevance:
		return SortByRelevance, true
	}
	return SortByDate, false
}

// SortOrder is an ordering direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// ParseSortOrder parses a sortOrder parameter. Unrecognized values are asc.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(s))) == SortOrderDesc {
		return SortOrderDesc
	}
	return SortOrderAsc
}

// NullsOrder places NULL values before or after non-NULL ones
type NullsOrder string

const (
	NullsFirst NullsOrder = "first"
	NullsLast  NullsOrder = "last"
)

// IsolationLevel is the transaction isolation used for snapshot reads
type IsolationLevel string

const (
	IsolationReadUncommitted IsolationLevel = "read_uncommitted"
	IsolationReadCommitted   IsolationLevel = "read_committed"
	IsolationRepeatableRead  IsolationLevel = "repeatable_read"
	IsolationSerializable    IsolationLevel = "serializable"
)

// ParseIsolationLevel parses an isolation level name; accepts spaces or
// underscores ("repeatable read", "REPEATABLE_READ").
func ParseIsolationLevel(s string) (IsolationLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch IsolationLevel(normalized) {
	case IsolationReadUncommitted, IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
		return IsolationLevel(normalized), true
	}
	return IsolationReadCommitted, false
}

// SQL maps the level onto database/sql
func (l IsolationLevel) SQL() sql.IsolationLevel {
	switch l {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}
