package handlers

import (
	"context"
	"net/http"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
)

// ZeroResultLister lists searches that matched nothing
type ZeroResultLister interface {
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// AnalyticsHandler exposes search analytics
type AnalyticsHandler struct {
	analytics ZeroResultLister
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics ZeroResultLister) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// ZeroResultQueries handles GET /api/analytics/zero-result-queries
func (h *AnalyticsHandler) ZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	limit := atoiOrZero(r.URL.Query().Get("limit"))

	events, err := h.analytics.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithData(w, map[string]interface{}{
		"queries": events,
		"count":   len(events),
	})
}
