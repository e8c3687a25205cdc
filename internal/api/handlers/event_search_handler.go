package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/search"
)

// EventSearcher runs event searches
type EventSearcher interface {
	Search(ctx context.Context, params services.SearchParams) (*services.SearchResponse, error)
}

// EventSearchHandler handles event search HTTP requests
type EventSearchHandler struct {
	searcher      EventSearcher
	publicBaseURL string
}

// NewEventSearchHandler creates a new event search handler.
// publicBaseURL prefixes relative image paths.
func NewEventSearchHandler(searcher EventSearcher, publicBaseURL string) *EventSearchHandler {
	return &EventSearchHandler{
		searcher:      searcher,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// EventResponse is one event in a search response
type EventResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	City              *string   `json:"city"`
	Country           *string   `json:"country"`
	Website           *string   `json:"website"`
	Style             *string   `json:"style"`
	ImageURL          *string   `json:"imageUrl"`
	QualityScore      *float64  `json:"qualityScore"`
	CompletenessScore *float64  `json:"completenessScore"`
	ExtractionMethod  *string   `json:"extractionMethod"`
	SearchRank        float64   `json:"searchRank"`
	MatchedField      *string   `json:"matchedField"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// SearchMeta echoes the normalized search inputs
type SearchMeta struct {
	Query     string `json:"query"`
	City      string `json:"city"`
	Country   string `json:"country"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
	TookMs    int64  `json:"tookMs"`
}

// EventSearchData is the data block of a search response
type EventSearchData struct {
	Events     []EventResponse   `json:"events"`
	Pagination search.Pagination `json:"pagination"`
	SearchMeta SearchMeta        `json:"searchMeta"`
}

// SearchEvents handles GET /api/search/events
func (h *EventSearchHandler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	resp, err := h.searcher.Search(r.Context(), ParseSearchParams(r))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	events := make([]EventResponse, 0, len(resp.Events))
	for i := range resp.Events {
		events = append(events, h.toEventResponse(&resp.Events[i], resp.Ordering.Ranked))
	}

	respondWithData(w, EventSearchData{
		Events:     events,
		Pagination: resp.Pagination(),
		SearchMeta: SearchMeta{
			Query:     resp.Criteria.Query,
			City:      resp.Criteria.City,
			Country:   resp.Criteria.Country,
			SortBy:    string(resp.Ordering.SortBy),
			SortOrder: string(resp.Ordering.SortOrder),
			TookMs:    resp.Took.Milliseconds(),
		},
	})
}

// ParseSearchParams reads search parameters from the query string.
// "q" is accepted when "query" is absent; non-numeric page and limit
// are treated as unset.
func ParseSearchParams(r *http.Request) services.SearchParams {
	values := r.URL.Query()

	query := values.Get("query")
	if query == "" {
		query = values.Get("q")
	}

	return services.SearchParams{
		Query:     query,
		City:      values.Get("city"),
		Country:   values.Get("country"),
		Page:      atoiOrZero(values.Get("page")),
		Limit:     atoiOrZero(values.Get("limit")),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}
}

func (h *EventSearchHandler) toEventResponse(r *entities.EventSearchResult, ranked bool) EventResponse {
	resp := EventResponse{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		StartDate:         r.FromDate,
		EndDate:           r.ToDate,
		City:              r.City,
		Country:           r.Country,
		Website:           r.Website,
		Style:             r.Style,
		ImageURL:          PublicImageURL(h.publicBaseURL, r.ImageURL),
		QualityScore:      r.QualityScore,
		CompletenessScore: r.CompletenessScore,
		ExtractionMethod:  r.ExtractionMethod,
		SearchRank:        r.SearchRank,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if ranked {
		if field, ok := search.MatchedField(r.SearchRank); ok {
			name := string(field)
			resp.MatchedField = &name
		}
	}
	return resp
}

// PublicImageURL returns the public URL of a stored image path. Absolute
// http(s) URLs pass through; relative upload paths are joined onto
// baseURL. Without a base URL relative paths are returned root-relative.
func PublicImageURL(baseURL string, stored *string) *string {
	if stored == nil {
		return nil
	}
	path := strings.TrimSpace(*stored)
	if path == "" {
		return nil
	}

	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &path
	}

	path = strings.TrimLeft(path, "/")
	url := strings.TrimRight(baseURL, "/") + "/" + path
	return &url
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
