package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
)

const (
	analyticsTimeout       = 5 * time.Second
	defaultZeroResultLimit = 50
	maxZeroResultLimit     = 500
)

type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
	wg   sync.WaitGroup
}

func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// TrackSearch records event in the background. Failures are logged and
// never reach the caller.
func (s *SearchAnalyticsService) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// The request context is usually done before the write lands
		bgCtx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
		defer cancel()

		if err := s.repo.LogEvent(bgCtx, event); err != nil {
			log.Warn().Err(err).Str("query", event.Query).Msg("Failed to log search event")
		}
	}()
}

// Wait blocks until every pending TrackSearch write has finished
func (s *SearchAnalyticsService) Wait() {
	s.wg.Wait()
}

// GetZeroResultQueries lists the most recent searches that matched
// nothing, newest first.
func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = defaultZeroResultLimit
	}
	if limit > maxZeroResultLimit {
		limit = maxZeroResultLimit
	}
	return s.repo.GetZeroResultQueries(ctx, limit)
}
