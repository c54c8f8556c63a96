// internal/api/v2/analytics.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
)

const (
	defaultRankingsLimit = 10
	maxRankingsLimit     = 50
)

// RankedDetection is a detection with its dense 1-based confidence rank.
// Detections sharing a confidence score share a rank.
type RankedDetection struct {
	Rank int `json:"rank"`
	DetectionResponse
}

// Period names the inclusive date range a response covers.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// RankingsResponse is the envelope for the confidence rankings.
type RankingsResponse struct {
	Rankings  []RankedDetection `json:"rankings"`
	Period    Period            `json:"period"`
	MediaType string            `json:"mediaType"`
}

// PlatformStatsResponse is the envelope for the per-platform aggregates.
type PlatformStatsResponse struct {
	Platforms []PlatformSummaryResponse `json:"platforms"`
	Period    Period                    `json:"period"`
}

// PlatformListResponse carries the distinct platform names for filter
// dropdowns.
type PlatformListResponse struct {
	Platforms []string `json:"platforms"`
}

// periodFromFilter names the inclusive range of a date-required filter. The
// stored end bound is exclusive, so the label steps back one day.
func periodFromFilter(filter *datastore.DetectionFilter) Period {
	return Period{
		StartDate: filter.Start.Format("2006-01-02"),
		EndDate:   filter.End.AddDate(0, 0, -1).Format("2006-01-02"),
	}
}

// DailyStatsResponse pairs the materialized rollups with aggregates computed
// live from the detection table for the same range.
type DailyStatsResponse struct {
	HistoricalStats []DailyStatResponse      `json:"historical_stats"`
	RealtimeStats   []DailyAggregateResponse `json:"realtime_stats"`
}

// DailyStatResponse is the JSON shape of a materialized daily rollup row.
type DailyStatResponse struct {
	Date               string  `json:"date"`
	PhotosDetected     int     `json:"photos_detected"`
	VideosDetected     int     `json:"videos_detected"`
	PhotosAnalyzed     int     `json:"photos_analyzed"`
	VideosAnalyzed     int     `json:"videos_analyzed"`
	AvgConfidenceScore float64 `json:"avg_confidence_score"`
}

// DailyAggregateResponse is the JSON shape of a live per-day aggregate.
type DailyAggregateResponse struct {
	Date          string  `json:"date"`
	PhotoCount    int     `json:"photo_count"`
	VideoCount    int     `json:"video_count"`
	TotalCount    int     `json:"total_count"`
	AvgConfidence float64 `json:"avg_confidence"`
	VerifiedCount int     `json:"verified_count"`
}

// PlatformSummaryResponse is the JSON shape of a per-platform aggregate.
// Averages are rounded at this boundary, not in SQL.
type PlatformSummaryResponse struct {
	Platform          string  `json:"platform"`
	Count             int     `json:"count"`
	PhotoCount        int     `json:"photo_count"`
	VideoCount        int     `json:"video_count"`
	AvgConfidence     float64 `json:"avg_confidence"`
	AvgConfidenceText string  `json:"avg_confidence_display"`
	MaxConfidence     float64 `json:"max_confidence"`
	VerifiedCount     int     `json:"verified_count"`
}

// initAnalyticsRoutes registers the analytics-related routes
func (c *Controller) initAnalyticsRoutes() {
	c.Group.GET("/analytics/rankings", c.GetRankings)
	c.Group.GET("/analytics/daily", c.GetDailyAnalytics)
	c.Group.GET("/analytics/platforms", c.GetPlatformAnalytics)
	c.Group.GET("/platforms", c.GetPlatforms)
}

// GetRankings handles GET /api/v2/analytics/rankings. Detections are ordered
// by confidence descending with recency breaking ties, and assigned dense
// ranks: equal scores share a rank and the next distinct score takes rank+1.
func (c *Controller) GetRankings(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	limit := defaultRankingsLimit
	if limitStr := ctx.QueryParam("limit"); limitStr != "" {
		parsed, parseErr := strconv.Atoi(limitStr)
		if parseErr != nil || parsed < 1 {
			return c.HandleError(ctx, parseErr, "Invalid limit parameter", http.StatusBadRequest)
		}
		limit = parsed
		if limit > maxRankingsLimit {
			limit = maxRankingsLimit
		}
	}

	detections, err := c.DS.GetTopDetections(filter, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve rankings", http.StatusInternalServerError)
	}

	ranked := make([]RankedDetection, 0, len(detections))
	rank := 0
	prevScore := -1.0
	for i := range detections {
		if detections[i].ConfidenceScore != prevScore {
			rank++
			prevScore = detections[i].ConfidenceScore
		}
		ranked = append(ranked, RankedDetection{
			Rank:              rank,
			DetectionResponse: detectionToResponse(&detections[i]),
		})
	}

	mediaType := filter.MediaType
	if mediaType == "" {
		mediaType = datastore.MediaTypeAll
	}

	return ctx.JSON(http.StatusOK, RankingsResponse{
		Rankings:  ranked,
		Period:    periodFromFilter(filter),
		MediaType: mediaType,
	})
}

// GetDailyAnalytics handles GET /api/v2/analytics/daily. It returns both the
// materialized rollups and live aggregates for the requested range.
func (c *Controller) GetDailyAnalytics(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	aggregates, err := c.DS.GetDailyAggregates(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve daily aggregates", http.StatusInternalServerError)
	}

	startDate := filter.Start.Format("2006-01-02")
	endDate := filter.End.AddDate(0, 0, -1).Format("2006-01-02")
	stats, err := c.DS.GetDailyStats(startDate, endDate)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve daily stats", http.StatusInternalServerError)
	}

	response := DailyStatsResponse{
		HistoricalStats: make([]DailyStatResponse, 0, len(stats)),
		RealtimeStats:   make([]DailyAggregateResponse, 0, len(aggregates)),
	}
	for i := range stats {
		response.HistoricalStats = append(response.HistoricalStats, DailyStatResponse{
			Date:               stats[i].Date,
			PhotosDetected:     stats[i].PhotosDetected,
			VideosDetected:     stats[i].VideosDetected,
			PhotosAnalyzed:     stats[i].PhotosAnalyzed,
			VideosAnalyzed:     stats[i].VideosAnalyzed,
			AvgConfidenceScore: stats[i].AvgConfidenceScore,
		})
	}
	for i := range aggregates {
		response.RealtimeStats = append(response.RealtimeStats, DailyAggregateResponse{
			Date:          aggregates[i].Date,
			PhotoCount:    aggregates[i].PhotoCount,
			VideoCount:    aggregates[i].VideoCount,
			TotalCount:    aggregates[i].TotalCount,
			AvgConfidence: aggregates[i].AvgConfidence,
			VerifiedCount: aggregates[i].VerifiedCount,
		})
	}

	return ctx.JSON(http.StatusOK, response)
}

// GetPlatformAnalytics handles GET /api/v2/analytics/platforms
func (c *Controller) GetPlatformAnalytics(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	summaries, err := c.DS.GetPlatformSummaryData(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve platform summary", http.StatusInternalServerError)
	}

	responses := make([]PlatformSummaryResponse, 0, len(summaries))
	for i := range summaries {
		s := &summaries[i]
		responses = append(responses, PlatformSummaryResponse{
			Platform:          s.Platform,
			Count:             s.Count,
			PhotoCount:        s.PhotoCount,
			VideoCount:        s.VideoCount,
			AvgConfidence:     s.AvgConfidence,
			AvgConfidenceText: strconv.FormatFloat(s.AvgConfidence, 'f', 4, 64),
			MaxConfidence:     s.MaxConfidence,
			VerifiedCount:     s.VerifiedCount,
		})
	}

	return ctx.JSON(http.StatusOK, PlatformStatsResponse{
		Platforms: responses,
		Period:    periodFromFilter(filter),
	})
}

// GetPlatforms handles GET /api/v2/platforms. The distinct platform list backs
// a filter dropdown, so it is served from cache.
func (c *Controller) GetPlatforms(ctx echo.Context) error {
	if cached, found := c.platformCache.Get(platformCacheKey); found {
		if platforms, ok := cached.([]string); ok {
			return ctx.JSON(http.StatusOK, PlatformListResponse{Platforms: platforms})
		}
	}

	platforms, err := c.DS.GetDistinctPlatforms()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve platforms", http.StatusInternalServerError)
	}

	c.platformCache.SetDefault(platformCacheKey, platforms)
	return ctx.JSON(http.StatusOK, PlatformListResponse{Platforms: platforms})
}
