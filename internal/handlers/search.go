package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/search"
	"github.com/querydesk/querydesk/internal/session"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// SearchServiceInterface defines the interface for the search proxy
type SearchServiceInterface interface {
	Lookup(ctx context.Context, route search.Route, query string, actor session.Identity) (search.Result, error)
	Features(ctx context.Context, actor session.Identity) ([]string, error)
}

// SearchHandler handles the search proxy endpoints
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Search proxies one lookup. The path segment selects the search kind, the
// query parameter carries the subject.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	route, ok := search.RouteByName(chi.URLParam(r, "kind"))
	if !ok {
		pkghttp.WriteNotFound(w, "Unknown search type")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		pkghttp.WriteBadRequest(w, "Query parameter is required")
		return
	}

	identity, ok := gate.GetIdentity(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.Lookup(r.Context(), route, query, identity)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	// Vehicle upstream failures ride an HTTP 200 so the UI reads one shape
	// for that kind regardless of provider health
	if result.State == search.StateUpstreamError {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"error":   result.Message,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result.Records,
		"count":   result.Count,
	})
}

// Features returns the caller's effective search feature set
func (h *SearchHandler) Features(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.GetIdentity(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	features, err := h.service.Features(r.Context(), identity)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"features": features,
	})
}

func (h *SearchHandler) writeSearchError(w http.ResponseWriter, err error) {
	var queryErr *search.QueryError

	switch {
	case errors.As(err, &queryErr):
		pkghttp.WriteBadRequest(w, queryErr.Message)
	case errors.Is(err, models.ErrFeatureDisabled):
		pkghttp.WriteForbidden(w, "Feature not enabled")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteUnauthorized(w, "Account is inactive")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrUpstreamTimeout):
		pkghttp.WriteUpstreamTimeout(w, "Upstream service timed out")
	default:
		pkghttp.WriteInternalError(w, "Search failed")
	}
}
