package maps

import (
	"context"
	"net/http"

	"recruitment_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// SiteSuggester is the place search behind site registration.
type SiteSuggester interface {
	SuggestSites(ctx context.Context, query string) ([]SiteSuggestion, error)
}

// Handler serves site location lookups for coordinators registering a
// claimed site.
type Handler struct {
	sites SiteSuggester
}

func NewHandler(sites SiteSuggester) *Handler {
	return &Handler{sites: sites}
}

// LookupSite handles GET /api/v1/maps/site-lookup?q=...
func (h *Handler) LookupSite(c *gin.Context) {
	var req SiteLookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "query 'q' is required (3 to 200 chars)", nil)
		return
	}

	results, err := h.sites.SuggestSites(c.Request.Context(), req.Query)
	if err != nil {
		httpkit.Error(c, http.StatusBadGateway, "site lookup service unavailable", nil)
		return
	}

	httpkit.OK(c, results)
}
