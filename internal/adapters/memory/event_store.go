// Package memory holds an in-process EventSearchRepository. It evaluates
// search predicates and ranks in Go with the same semantics the
// PostgreSQL adapter compiles into SQL, and serves fixture files and
// tests that run without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
)

// EventStore is a concurrency-safe in-memory event table
type EventStore struct {
	mu     sync.RWMutex
	events []entities.Event
}

var _ repositories.EventSearchRepository = (*EventStore)(nil)

// NewEventStore creates a store holding a copy of events
func NewEventStore(events ...entities.Event) *EventStore {
	s := &EventStore{}
	s.Add(events...)
	return s
}

// ReadFixtures decodes a JSON array of events from path
func ReadFixtures(path string) ([]entities.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var events []entities.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decoding fixtures %s: %w", path, err)
	}
	return events, nil
}

// LoadEventStore creates a store from a fixture file
func LoadEventStore(path string) (*EventStore, error) {
	events, err := ReadFixtures(path)
	if err != nil {
		return nil, err
	}
	return NewEventStore(events...), nil
}

// Add appends events to the store
func (s *EventStore) Add(events ...entities.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// Len returns the number of stored events
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// SearchWithCount implements EventSearchRepository. Count and page are
// taken from the same read lock, so they always agree.
func (s *EventStore) SearchWithCount(ctx context.Context, q search.Query) (*search.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]entities.EventSearchResult, 0)
	for i := range s.events {
		e := s.events[i]
		if !q.Predicate.Matches(&e) {
			continue
		}
		matched = append(matched, entities.EventSearchResult{
			Event:      e,
			SearchRank: q.Ordering.RankOf(&e),
		})
	}
	s.mu.RUnlock()

	sortResults(matched, q.Ordering.Keys())

	total := int64(len(matched))
	rows := make([]entities.EventSearchResult, 0)
	if q.Offset >= 0 && q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) || end < q.Offset {
			end = len(matched)
		}
		rows = append(rows, matched[q.Offset:end]...)
	}
	for i := range rows {
		rows[i].TotalCount = total
	}

	return &search.Page{Total: total, Rows: rows}, nil
}

// Ping always succeeds
func (s *EventStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortResults(rows []entities.EventSearchResult, keys []search.SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			if c := compareKey(&rows[i], &rows[j], key); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// compareKey orders a before b (<0), after b (>0) or equal (0)
func compareKey(a, b *entities.EventSearchResult, key search.SortKey) int {
	var c int
	switch key.Field {
	case search.RankKey:
		c = compareFloat(a.SearchRank, b.SearchRank)
	case string(entities.EventColumnFromDate):
		// zero time stands in for NULL
		aNull, bNull := a.FromDate.IsZero(), b.FromDate.IsZero()
		if aNull || bNull {
			return compareNulls(aNull, bNull, key.Nulls)
		}
		c = a.FromDate.Compare(b.FromDate)
	case string(entities.EventColumnID):
		c = compareInt(a.ID, b.ID)
	}
	if key.Order == search.SortOrderDesc {
		c = -c
	}
	return c
}

func compareNulls(aNull, bNull bool, nulls search.NullsOrder) int {
	if aNull == bNull {
		return 0
	}
	first := -1
	if nulls == search.NullsLast {
		first = 1
	}
	if aNull {
		return first
	}
	return -first
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
