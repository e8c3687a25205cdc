package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
	apperrors "github.com/swingfinder/festival-finder/pkg/errors"
)

// Defaults applied to search parameters left empty by the caller
const (
	DefaultSortBy    = string(search.SortByRelevance)
	DefaultSortOrder = string(search.SortOrderDesc)
)

// SearchParams are the raw inputs of an event search. Every field is
// optional; invalid values are normalized rather than rejected.
type SearchParams struct {
	Query     string
	City      string
	Country   string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// SearchResponse is one page of search results with pagination metadata
type SearchResponse struct {
	Events     []entities.EventSearchResult
	Total      int64
	Page       int
	Limit      int
	TotalPages int
	HasNext    bool
	HasPrev    bool

	// Criteria and Ordering are the normalized inputs actually executed
	Criteria search.Criteria
	Ordering search.Ordering
	Took     time.Duration
}

// Pagination returns the response's pagination block
func (r *SearchResponse) Pagination() search.Pagination {
	return search.Pagination{
		Page:       r.Page,
		Limit:      r.Limit,
		Total:      r.Total,
		TotalPages: r.TotalPages,
		HasNext:    r.HasNext,
		HasPrev:    r.HasPrev,
	}
}

// EventSearchConfig tunes an EventSearchService
type EventSearchConfig struct {
	DefaultLimit int
	MaxLimit     int
	Metrics      *observability.Metrics
}

// EventSearchService runs event searches: it normalizes parameters,
// builds the predicate and ordering, and delegates to the repository.
type EventSearchService struct {
	repo         repositories.EventSearchRepository
	analytics    *SearchAnalyticsService
	metrics      *observability.Metrics
	defaultLimit int
	maxLimit     int
}

// NewEventSearchService creates a new event search service. analytics
// may be nil.
func NewEventSearchService(repo repositories.EventSearchRepository, analytics *SearchAnalyticsService, cfg EventSearchConfig) *EventSearchService {
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = search.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = search.MaxLimit
	}
	return &EventSearchService{
		repo:         repo,
		analytics:    analytics,
		metrics:      cfg.Metrics,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
}

// Search executes params. Errors are AppErrors of type UNAVAILABLE
// (retriable) or INTERNAL; no partial page is ever returned.
func (s *EventSearchService) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	ctx, span := observability.StartSpan(ctx, "EventSearchService.Search")
	defer span.End()

	start := time.Now()
	q, page := s.BuildQuery(params)

	observability.SetSpanAttributes(span,
		attribute.String("search.sort_by", string(q.Ordering.SortBy)),
		attribute.String("search.sort_order", string(q.Ordering.SortOrder)),
		attribute.Bool("search.has_query", q.Criteria.Query != ""),
		attribute.Int("search.page", page),
		attribute.Int("search.limit", q.Limit),
	)

	result, err := s.repo.SearchWithCount(ctx, q)
	if err != nil {
		err = normalizeSearchError(err)
		observability.RecordError(span, err)
		observability.RecordSearchError(ctx, s.metrics, string(apperrors.TypeOf(err)))
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("error_type", string(apperrors.TypeOf(err))).
			Msg("Event search failed")
		return nil, err
	}

	took := time.Since(start)
	pagination := search.NewPagination(page, q.Limit, result.Total)
	observability.RecordSearch(ctx, s.metrics, string(q.Ordering.SortBy), result.Total)
	observability.SetSpanAttributes(span, attribute.Int64("search.total", result.Total))

	if s.analytics != nil {
		s.analytics.TrackSearch(ctx, &entities.SearchEvent{
			Query:       q.Criteria.Query,
			City:        q.Criteria.City,
			Country:     q.Criteria.Country,
			SortBy:      string(q.Ordering.SortBy),
			Page:        page,
			ResultCount: result.Total,
			LatencyMs:   took.Milliseconds(),
		})
	}

	rows := result.Rows
	if rows == nil {
		rows = []entities.EventSearchResult{}
	}

	return &SearchResponse{
		Events:     rows,
		Total:      result.Total,
		Page:       pagination.Page,
		Limit:      pagination.Limit,
		TotalPages: pagination.TotalPages,
		HasNext:    pagination.HasNext,
		HasPrev:    pagination.HasPrev,
		Criteria:   q.Criteria,
		Ordering:   q.Ordering,
		Took:       took,
	}, nil
}

// BuildQuery normalizes params into an executable query and returns it
// with the normalized page number.
func (s *EventSearchService) BuildQuery(params SearchParams) (search.Query, int) {
	sortBy := strings.TrimSpace(params.SortBy)
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	sortOrder := strings.TrimSpace(params.SortOrder)
	if sortOrder == "" {
		sortOrder = DefaultSortOrder
	}

	criteria := search.Criteria{
		Query:   params.Query,
		City:    params.City,
		Country: params.Country,
	}.Normalize()

	page, limit, offset := search.PageBounds(params.Page, params.Limit, s.defaultLimit, s.maxLimit)
	ordering := search.ResolveOrdering(sortBy, sortOrder, criteria.Query)

	return search.NewQuery(criteria, ordering, limit, offset), page
}

// Ping reports whether the event store is reachable
func (s *EventSearchService) Ping(ctx context.Context) error {
	return normalizeSearchError(s.repo.Ping(ctx))
}

// normalizeSearchError makes sure every failure leaving the service is
// typed; untyped timeouts count as unavailable.
func normalizeSearchError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnavailableError("event search timed out", err)
	}
	return apperrors.NewInternalError("event search failed", err)
}
