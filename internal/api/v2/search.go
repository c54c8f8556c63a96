// internal/api/v2/search.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/deepsentry/deepsentry-go/internal/errors"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 100
)

// SearchResponse echoes the query back alongside the matching detections.
type SearchResponse struct {
	Results []DetectionResponse `json:"results"`
	Query   string              `json:"query"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	HasMore bool                `json:"hasMore"`
}

// initSearchRoutes registers the search-related routes
func (c *Controller) initSearchRoutes() {
	c.Group.GET("/search", c.Search)
}

// Search handles GET /api/v2/search. The query matches title, description and
// detection method as a substring; all other filters compose with it.
func (c *Controller) Search(ctx echo.Context) error {
	query := strings.TrimSpace(ctx.QueryParam("q"))
	if query == "" {
		return c.HandleError(ctx,
			errors.Newf("missing search query").
				Component("api").
				Category(errors.CategoryValidation).
				Build(),
			"Search query is required", http.StatusBadRequest)
	}

	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	filter.Query = query

	limit, offset, err := parseLimitOffset(ctx, defaultSearchLimit, maxSearchLimit)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	detections, err := c.DS.SearchDetections(filter, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Search failed", http.StatusInternalServerError)
	}

	total, err := c.DS.CountDetections(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Search failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, SearchResponse{
		Results: detectionsToResponses(detections),
		Query:   query,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+limit) < total,
	})
}
