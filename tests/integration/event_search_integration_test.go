//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
)

type EventSearchIntegrationTestSuite struct {
	suite.Suite
	client  *postgres.Client
	seeder  *database.EventSeeder
	adapter repositories.EventSearchRepository
	service *services.EventSearchService
}

func TestEventSearchIntegrationTestSuite(t *testing.T) {
	skipWithoutPostgres(t)
	suite.Run(t, new(EventSearchIntegrationTestSuite))
}

func (s *EventSearchIntegrationTestSuite) SetupSuite() {
	s.client = newTestPostgresClient(s.T())
	s.seeder = database.NewEventSeeder(s.client)
	s.adapter = database.NewEventSearchAdapter(s.client)
	s.service = services.NewEventSearchService(s.adapter, nil, services.EventSearchConfig{})
}

func (s *EventSearchIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *EventSearchIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.seeder.Truncate(context.Background()))
}

func (s *EventSearchIntegrationTestSuite) seed(events ...entities.Event) {
	_, err := s.seeder.Seed(context.Background(), events)
	s.Require().NoError(err)
}

func (s *EventSearchIntegrationTestSuite) search(params services.SearchParams) *services.SearchResponse {
	resp, err := s.service.Search(context.Background(), params)
	s.Require().NoError(err)
	return resp
}

func ids(rows []entities.EventSearchResult) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func (s *EventSearchIntegrationTestSuite) TestMountainScenario() {
	s.seed(
		testEvent(1, "Mountain Blues", 10),
		testEvent(2, "Stone Jazz", 5),
		testEvent(3, "Desert Swing", 1),
	)

	resp := s.search(services.SearchParams{Query: "Mountain", SortBy: "relevance", SortOrder: "desc", Limit: 10, Page: 1})

	s.Equal(int64(1), resp.Total)
	s.Require().Len(resp.Events, 1)
	s.Equal("Mountain Blues", resp.Events[0].Name)
	s.Equal(1.0, resp.Events[0].SearchRank)
}

func (s *EventSearchIntegrationTestSuite) TestBerlinScenario() {
	var events []entities.Event
	for i := 1; i <= 10; i++ {
		e := testEvent(int64(i), fmt.Sprintf("Festival %d", i), i)
		if i <= 7 {
			e.City = strPtr("Berlin")
		} else {
			e.City = strPtr("Paris")
		}
		events = append(events, e)
	}
	s.seed(events...)

	resp := s.search(services.SearchParams{City: "Berlin", Page: 1, Limit: 5})

	s.Equal(int64(7), resp.Total)
	s.Len(resp.Events, 5)
	s.True(resp.HasNext)
	s.False(resp.HasPrev)
	s.Equal(2, resp.TotalPages)
}

func (s *EventSearchIntegrationTestSuite) TestRelevanceTiersAndTieBreak() {
	desc := testEvent(2, "Camp", 1)
	desc.Description = strPtr("high in the mountains")
	country := testEvent(3, "Camp Three", 2)
	country.Country = strPtr("Mountain Republic")
	s.seed(
		testEvent(1, "Mountain Camp", 30),
		desc,
		country,
		testEvent(4, "Mountain Weekend", 30),
	)

	resp := s.search(services.SearchParams{Query: "mountain", SortBy: "relevance", SortOrder: "desc"})

	s.Equal([]int64{1, 4, 2, 3}, ids(resp.Events))
	ranks := make([]float64, len(resp.Events))
	for i, r := range resp.Events {
		ranks[i] = r.SearchRank
	}
	s.Equal([]float64{1.0, 1.0, 0.8, 0.4}, ranks)
}

func (s *EventSearchIntegrationTestSuite) TestDateOrdering() {
	s.seed(testEvent(1, "A", 9), testEvent(2, "B", 2), testEvent(3, "C", 5), testEvent(4, "D", 2))

	asc := s.search(services.SearchParams{SortBy: "date", SortOrder: "asc"})
	s.Equal([]int64{2, 4, 3, 1}, ids(asc.Events))

	desc := s.search(services.SearchParams{SortBy: "date", SortOrder: "desc"})
	s.Equal([]int64{1, 3, 2, 4}, ids(desc.Events))

	for _, r := range desc.Events {
		s.Equal(search.NoMatchRank, r.SearchRank)
	}
}

func (s *EventSearchIntegrationTestSuite) TestPagingProperties() {
	var events []entities.Event
	for i := 1; i <= 23; i++ {
		e := testEvent(int64(i), fmt.Sprintf("Lindy Exchange %d", i), i%6)
		if i%2 == 0 {
			e.Style = strPtr("Lindy Hop")
		}
		events = append(events, e)
	}
	s.seed(events...)

	seen := map[int64]bool{}
	var total int64 = -1
	for page := 1; page <= 5; page++ {
		resp := s.search(services.SearchParams{Query: "lindy", SortBy: "relevance", Page: page, Limit: 5})
		if total >= 0 {
			s.Equal(total, resp.Total, "total must not depend on the page")
		}
		total = resp.Total
		s.LessOrEqual(len(resp.Events), 5)
		s.LessOrEqual(int64(len(resp.Events)), resp.Total)
		for _, r := range resp.Events {
			s.False(seen[r.ID], "event %d returned on two pages", r.ID)
			seen[r.ID] = true
		}
	}
	s.Equal(int64(23), total)
	s.Len(seen, 23)

	beyond := s.search(services.SearchParams{Query: "lindy", Page: 99, Limit: 5})
	s.Empty(beyond.Events)
	s.NotNil(beyond.Events)
	s.Equal(int64(23), beyond.Total)
}

func (s *EventSearchIntegrationTestSuite) TestIdempotent() {
	s.seed(testEvent(1, "Blues Ball", 3), testEvent(2, "Blues Bash", 3), testEvent(3, "Swing Ball", 1))

	params := services.SearchParams{Query: "ball", SortBy: "relevance", SortOrder: "desc", Limit: 10}
	first := s.search(params)
	second := s.search(params)
	s.Equal(ids(first.Events), ids(second.Events))
	s.Equal(first.Total, second.Total)
}

func (s *EventSearchIntegrationTestSuite) TestHostileInputIsLiteral() {
	s.seed(testEvent(1, "50% Off Swing", 1), testEvent(2, "Full Price Swing", 2))

	resp := s.search(services.SearchParams{Query: "50%"})
	s.Equal([]int64{1}, ids(resp.Events))

	resp = s.search(services.SearchParams{Query: "x'; DROP TABLE events; --"})
	s.Zero(resp.Total)

	after := s.search(services.SearchParams{})
	s.Equal(int64(2), after.Total)
}

func (s *EventSearchIntegrationTestSuite) TestSnapshotReads() {
	s.seed(testEvent(1, "Snapshot Swing", 1), testEvent(2, "Snapshot Blues", 2))

	level, ok := search.ParseIsolationLevel("repeatable_read")
	s.Require().True(ok)
	adapter := database.NewEventSearchAdapter(s.client, database.WithSnapshotReads(level))

	q := search.NewQuery(search.Criteria{Query: "snapshot"}, search.ResolveOrdering("date", "asc", "snapshot"), 1, 0)
	page, err := adapter.SearchWithCount(context.Background(), q)
	s.Require().NoError(err)
	s.Equal(int64(2), page.Total)
	s.Equal([]int64{1}, ids(page.Rows))
}

func (s *EventSearchIntegrationTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := s.service.Search(ctx, services.SearchParams{Query: "anything"})
	s.Error(err)
}

func (s *EventSearchIntegrationTestSuite) TestPing() {
	s.NoError(s.service.Ping(context.Background()))
}
