package memory

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/search"
)

func strPtr(s string) *string { return &s }

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func event(id int64, name string, days int) entities.Event {
	return entities.Event{
		ID:       id,
		Name:     name,
		FromDate: base.AddDate(0, 0, days),
		ToDate:   base.AddDate(0, 0, days+2),
	}
}

func run(t *testing.T, s *EventStore, c search.Criteria, sortBy, sortOrder string, page, limit int) (*search.Page, search.Pagination) {
	t.Helper()
	page, limit, offset := search.PageBounds(page, limit, search.DefaultLimit, search.MaxLimit)
	q := search.NewQuery(c, search.ResolveOrdering(sortBy, sortOrder, c.Query), limit, offset)
	p, err := s.SearchWithCount(context.Background(), q)
	require.NoError(t, err)
	return p, search.NewPagination(page, limit, p.Total)
}

func mountainStore() *EventStore {
	return NewEventStore(
		event(1, "Mountain Blues", 10),
		event(2, "Stone Jazz", 5),
		event(3, "Desert Swing", 1),
	)
}

func TestEventStore_MountainScenario(t *testing.T) {
	s := mountainStore()

	p, _ := run(t, s, search.Criteria{Query: "Mountain"}, "relevance", "desc", 1, 10)

	assert.Equal(t, int64(1), p.Total)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "Mountain Blues", p.Rows[0].Name)
	assert.Equal(t, 1.0, p.Rows[0].SearchRank)
}

func TestEventStore_BerlinScenario(t *testing.T) {
	s := NewEventStore()
	for i := 1; i <= 7; i++ {
		e := event(int64(i), fmt.Sprintf("Berlin Event %d", i), i)
		e.City = strPtr("Berlin")
		s.Add(e)
	}
	for i := 8; i <= 10; i++ {
		e := event(int64(i), fmt.Sprintf("Paris Event %d", i), i)
		e.City = strPtr("Paris")
		s.Add(e)
	}

	p, pagination := run(t, s, search.Criteria{City: "Berlin"}, "", "", 1, 5)

	assert.Equal(t, int64(7), p.Total)
	assert.Len(t, p.Rows, 5)
	assert.True(t, pagination.HasNext)
	assert.False(t, pagination.HasPrev)
}

func TestEventStore_HugePageIsEmpty(t *testing.T) {
	s := mountainStore()

	for _, page := range []int{4611686018427387904, 4611686018427387905, math.MaxInt} {
		p, pagination := run(t, s, search.Criteria{}, "date", "asc", page, 4)
		assert.Equal(t, int64(3), p.Total)
		assert.Empty(t, p.Rows, "page %d", page)
		assert.False(t, pagination.HasNext)
	}
}

func TestEventStore_NegativeOffsetIsEmpty(t *testing.T) {
	s := mountainStore()
	q := search.NewQuery(search.Criteria{}, search.ResolveOrdering("date", "asc", ""), 4, -4)

	p, err := s.SearchWithCount(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Total)
	assert.Empty(t, p.Rows)
}

func TestEventStore_RelevanceTiers(t *testing.T) {
	name := event(1, "Mountain Camp", 30)
	desc := event(2, "Camp", 1)
	desc.Description = strPtr("high in the mountains")
	none := event(3, "Valley Camp", 0)
	s := NewEventStore(none, desc, name)

	p, _ := run(t, s, search.Criteria{}, "relevance", "desc", 1, 10)
	// no query: relevance falls back to date ascending, rank 0
	require.Len(t, p.Rows, 3)
	assert.Equal(t, []int64{3, 2, 1}, ids(p.Rows))
	for _, r := range p.Rows {
		assert.Equal(t, search.NoMatchRank, r.SearchRank)
	}

	q := search.NewQuery(search.Criteria{}, search.ResolveOrdering("relevance", "desc", "Mountain"), 10, 0)
	ranked, err := s.SearchWithCount(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(ranked.Rows))
	assert.Equal(t, []float64{1.0, 0.8, 0.0}, ranks(ranked.Rows))
}

func TestEventStore_RankTieBreaksOnDateThenID(t *testing.T) {
	a := event(5, "Blues A", 3)
	b := event(4, "Blues B", 3)
	c := event(6, "Blues C", 1)
	s := NewEventStore(a, b, c)

	p, _ := run(t, s, search.Criteria{Query: "blues"}, "relevance", "desc", 1, 10)
	assert.Equal(t, []int64{6, 4, 5}, ids(p.Rows))
}

func TestEventStore_DateOrdering(t *testing.T) {
	s := NewEventStore(event(1, "A", 9), event(2, "B", 2), event(3, "C", 5), event(4, "D", 2))

	asc, _ := run(t, s, search.Criteria{}, "date", "asc", 1, 10)
	assert.Equal(t, []int64{2, 4, 3, 1}, ids(asc.Rows))
	assertMonotonic(t, asc.Rows, false)

	desc, _ := run(t, s, search.Criteria{}, "date", "desc", 1, 10)
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(desc.Rows))
	assertMonotonic(t, desc.Rows, true)

	unknown, _ := run(t, s, search.Criteria{}, "popularity", "desc", 1, 10)
	assert.Equal(t, ids(asc.Rows), ids(unknown.Rows))
}

func TestEventStore_PageBeyondEnd(t *testing.T) {
	s := mountainStore()

	p, pagination := run(t, s, search.Criteria{}, "date", "asc", 5, 2)
	assert.Equal(t, int64(3), p.Total)
	assert.NotNil(t, p.Rows)
	assert.Empty(t, p.Rows)
	assert.False(t, pagination.HasNext)
	assert.True(t, pagination.HasPrev)
}

func TestEventStore_Properties(t *testing.T) {
	s := NewEventStore()
	cities := []string{"Berlin", "Paris", "Hamburg"}
	for i := 1; i <= 23; i++ {
		e := event(int64(i), fmt.Sprintf("Festival %d", i), i%6)
		e.City = strPtr(cities[i%len(cities)])
		if i%4 == 0 {
			e.Style = strPtr("Balboa")
		}
		s.Add(e)
	}

	inputs := []search.Criteria{
		{},
		{City: "berlin"},
		{Query: "balboa"},
		{Query: "festival 1"},
		{Query: "nothing matches this"},
	}
	for _, c := range inputs {
		expected := 0
		pred := search.BuildPredicate(c)
		for i := range s.events {
			if pred.Matches(&s.events[i]) {
				expected++
			}
		}

		for _, limit := range []int{1, 5, 100} {
			for page := 1; page <= 4; page++ {
				p, _ := run(t, s, c, "relevance", "desc", page, limit)
				assert.LessOrEqual(t, len(p.Rows), limit)
				assert.LessOrEqual(t, int64(len(p.Rows)), p.Total)
				assert.Equal(t, int64(expected), p.Total, "total independent of page/limit for %+v", c)

				again, _ := run(t, s, c, "relevance", "desc", page, limit)
				assert.Equal(t, p, again)
			}
		}
	}

	all, _ := run(t, s, search.Criteria{}, "", "", 1, 100)
	assert.Equal(t, int64(s.Len()), all.Total)
}

func TestLoadEventStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	fixtures := `[{"id": 1, "name": "Mountain Blues", "from_date": "2026-05-01T00:00:00Z", "to_date": "2026-05-03T00:00:00Z", "city": "Denver"}]`
	require.NoError(t, os.WriteFile(path, []byte(fixtures), 0o600))

	s, err := LoadEventStore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, err = LoadEventStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestEventStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := search.NewQuery(search.Criteria{}, search.ResolveOrdering("", "", ""), 10, 0)
	_, err := mountainStore().SearchWithCount(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
}

func ids(rows []entities.EventSearchResult) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func ranks(rows []entities.EventSearchResult) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.SearchRank
	}
	return out
}

func assertMonotonic(t *testing.T, rows []entities.EventSearchResult, desc bool) {
	t.Helper()
	for i := 1; i < len(rows); i++ {
		if desc {
			assert.False(t, rows[i].FromDate.After(rows[i-1].FromDate))
		} else {
			assert.False(t, rows[i].FromDate.Before(rows[i-1].FromDate))
		}
	}
}
