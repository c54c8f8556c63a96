// internal/api/v2/detections.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/deepsentry/deepsentry-go/internal/errors"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	defaultRecentHours = 24
	maxRecentHours     = 168
)

// DetectionResponse is the JSON shape for a single detection. Confidence is
// carried both raw and formatted to the fixed 4 decimal places the dashboard
// displays.
type DetectionResponse struct {
	ID                uint           `json:"id"`
	MediaType         string         `json:"media_type"`
	MediaURL          string         `json:"media_url,omitempty"`
	ThumbnailURL      string         `json:"thumbnail_url,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	ConfidenceScore   float64        `json:"confidence_score"`
	ConfidenceDisplay string         `json:"confidence_display"`
	DetectionMethod   string         `json:"detection_method,omitempty"`
	SourcePlatform    string         `json:"source_platform,omitempty"`
	UploadDate        string         `json:"upload_date,omitempty"`
	DetectedDate      string         `json:"detected_date"`
	IsVerified        bool           `json:"is_verified"`
	FileSizeMB        float64        `json:"file_size_mb,omitempty"`
	DurationSeconds   int            `json:"duration_seconds,omitempty"`
	Resolution        string         `json:"resolution,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Pagination describes the page of a list response. HasMore reports whether
// another page exists beyond this one.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// DetectionsListResponse is the envelope for paginated detection lists.
type DetectionsListResponse struct {
	Data       []DetectionResponse `json:"data"`
	Pagination Pagination          `json:"pagination"`
}

// RecentSummary aggregates the detections inside the monitoring window.
type RecentSummary struct {
	Total         int     `json:"total"`
	PhotoCount    int     `json:"photo_count"`
	VideoCount    int     `json:"video_count"`
	VerifiedCount int     `json:"verified_count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// RecentPlatform is one entry of the monitoring view's platform breakdown.
type RecentPlatform struct {
	Platform string `json:"platform"`
	Count    int    `json:"count"`
}

// RecentDetectionsResponse is the envelope for the monitoring view: the page
// of recent detections plus a window-wide summary and the busiest platforms.
type RecentDetectionsResponse struct {
	Data         []DetectionResponse `json:"data"`
	Hours        int                 `json:"hours"`
	Summary      RecentSummary       `json:"summary"`
	TopPlatforms []RecentPlatform    `json:"top_platforms"`
}

// initDetectionRoutes registers the detection-related routes
func (c *Controller) initDetectionRoutes() {
	c.Group.GET("/detections", c.GetDetections)
	c.Group.GET("/detections/recent", c.GetRecentDetections)
	c.Group.GET("/detections/:id", c.GetDetection)
}

func detectionToResponse(d *datastore.Detection) DetectionResponse {
	resp := DetectionResponse{
		ID:                d.ID,
		MediaType:         d.MediaType,
		MediaURL:          d.MediaURL,
		ThumbnailURL:      d.ThumbnailURL,
		Title:             d.Title,
		Description:       d.Description,
		ConfidenceScore:   d.ConfidenceScore,
		ConfidenceDisplay: strconv.FormatFloat(d.ConfidenceScore, 'f', 4, 64),
		DetectionMethod:   d.DetectionMethod,
		SourcePlatform:    d.SourcePlatform,
		DetectedDate:      d.DetectedDate.Format(time.RFC3339),
		IsVerified:        d.IsVerified,
		FileSizeMB:        d.FileSizeMB,
		DurationSeconds:   d.DurationSeconds,
		Resolution:        d.Resolution,
		Tags:              d.Tags,
		Metadata:          d.Metadata,
	}
	if d.UploadDate != nil {
		resp.UploadDate = d.UploadDate.Format(time.RFC3339)
	}
	return resp
}

func detectionsToResponses(detections []datastore.Detection) []DetectionResponse {
	responses := make([]DetectionResponse, 0, len(detections))
	for i := range detections {
		responses = append(responses, detectionToResponse(&detections[i]))
	}
	return responses
}

// parseFilterParams builds a DetectionFilter from the common query parameters.
// The end date is made exclusive by advancing it one calendar day, so a range
// of 2026-08-01..2026-08-07 covers the whole of the 7th.
func (c *Controller) parseFilterParams(ctx echo.Context) (*datastore.DetectionFilter, error) {
	filter := &datastore.DetectionFilter{}

	if startStr := ctx.QueryParam("start_date"); startStr != "" {
		start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
		if err != nil {
			return nil, errors.Newf("invalid start_date %q, expected YYYY-MM-DD", startStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		filter.Start = &start
	}

	if endStr := ctx.QueryParam("end_date"); endStr != "" {
		end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
		if err != nil {
			return nil, errors.Newf("invalid end_date %q, expected YYYY-MM-DD", endStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		endExclusive := end.AddDate(0, 0, 1)
		filter.End = &endExclusive
	}

	if filter.Start != nil && filter.End != nil && !filter.Start.Before(*filter.End) {
		return nil, errors.Newf("start_date must not be after end_date").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	if mediaType := ctx.QueryParam("media_type"); mediaType != "" {
		switch mediaType {
		case datastore.MediaTypePhoto, datastore.MediaTypeVideo, datastore.MediaTypeAll:
			filter.MediaType = mediaType
		default:
			return nil, errors.Newf("invalid media_type %q, expected photo, video or all", mediaType).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
	}

	if confStr := ctx.QueryParam("min_confidence"); confStr != "" {
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil || conf < 0 || conf > 1 {
			return nil, errors.Newf("invalid min_confidence %q, expected a value in [0, 1]", confStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		filter.MinConfidence = conf
	}

	if platform := ctx.QueryParam("platform"); platform != "" {
		filter.Platform = &platform
	}

	if verifiedStr := ctx.QueryParam("verified"); verifiedStr != "" {
		verified, err := strconv.ParseBool(verifiedStr)
		if err != nil {
			return nil, errors.Newf("invalid verified %q, expected true or false", verifiedStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		filter.Verified = &verified
	}

	return filter, nil
}

// requireDateRange rejects a filter missing either date bound. List, rankings,
// stats and export refuse unbounded ranges; search and the monitoring endpoints
// choose their own windows.
func requireDateRange(filter *datastore.DetectionFilter) error {
	if filter.Start == nil {
		return errors.Newf("start_date is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if filter.End == nil {
		return errors.Newf("end_date is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// parseLimitOffset parses pagination parameters, clamping the limit to maxLimit.
func parseLimitOffset(ctx echo.Context, defaultLimit, maxLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	if limitStr := ctx.QueryParam("limit"); limitStr != "" {
		parsed, parseErr := strconv.Atoi(limitStr)
		if parseErr != nil || parsed < 1 {
			return 0, 0, errors.Newf("invalid limit %q, expected a positive integer", limitStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		limit = parsed
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	if offsetStr := ctx.QueryParam("offset"); offsetStr != "" {
		parsed, parseErr := strconv.Atoi(offsetStr)
		if parseErr != nil || parsed < 0 {
			return 0, 0, errors.Newf("invalid offset %q, expected a non-negative integer", offsetStr).
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		offset = parsed
	}

	return limit, offset, nil
}

// statusForError maps datastore and validation errors to HTTP status codes.
func statusForError(err error) int {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		switch enhanced.Category {
		case errors.CategoryValidation:
			return http.StatusBadRequest
		case errors.CategoryNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// GetDetections handles GET /api/v2/detections. The count query runs with the
// same filter as the data query so the reported total always matches the page.
func (c *Controller) GetDetections(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	limit, offset, err := parseLimitOffset(ctx, defaultListLimit, maxListLimit)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	detections, err := c.DS.SearchDetections(filter, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve detections", http.StatusInternalServerError)
	}

	total, err := c.DS.CountDetections(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count detections", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, DetectionsListResponse{
		Data: detectionsToResponses(detections),
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+limit) < total,
		},
	})
}

// GetDetection handles GET /api/v2/detections/:id
func (c *Controller) GetDetection(ctx echo.Context) error {
	id := ctx.Param("id")

	detection, err := c.DS.Get(id)
	if err != nil {
		code := statusForError(err)
		message := "Failed to retrieve detection"
		switch code {
		case http.StatusBadRequest:
			message = "Invalid detection ID"
		case http.StatusNotFound:
			message = "Detection not found"
		}
		return c.HandleError(ctx, err, message, code)
	}

	return ctx.JSON(http.StatusOK, detectionToResponse(&detection))
}

// GetRecentDetections handles GET /api/v2/detections/recent. It returns
// detections from the trailing N hours for the monitoring view.
func (c *Controller) GetRecentDetections(ctx echo.Context) error {
	hours := defaultRecentHours
	if hoursStr := ctx.QueryParam("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed < 1 || parsed > maxRecentHours {
			return c.HandleError(ctx,
				errors.Newf("invalid hours %q, expected 1-%d", hoursStr, maxRecentHours).
					Component("api").
					Category(errors.CategoryValidation).
					Build(),
				"Invalid hours parameter", http.StatusBadRequest)
		}
		hours = parsed
	}

	limit, offset, err := parseLimitOffset(ctx, defaultListLimit, maxListLimit)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	filter := &datastore.DetectionFilter{Start: &since}

	if minConfStr := ctx.QueryParam("min_confidence"); minConfStr != "" {
		conf, parseErr := strconv.ParseFloat(minConfStr, 64)
		if parseErr != nil || conf < 0 || conf > 1 {
			return c.HandleError(ctx,
				errors.Newf("invalid min_confidence %q", minConfStr).
					Component("api").
					Category(errors.CategoryValidation).
					Build(),
				"Invalid min_confidence parameter", http.StatusBadRequest)
		}
		filter.MinConfidence = conf
	}

	detections, err := c.DS.SearchDetections(filter, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve recent detections", http.StatusInternalServerError)
	}

	// The platform rollup covers the whole window, not just this page, and
	// already carries everything the summary needs.
	platformData, err := c.DS.GetPlatformSummaryData(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to summarize recent detections", http.StatusInternalServerError)
	}

	summary, topPlatforms := summarizeRecent(platformData)

	return ctx.JSON(http.StatusOK, RecentDetectionsResponse{
		Data:         detectionsToResponses(detections),
		Hours:        hours,
		Summary:      summary,
		TopPlatforms: topPlatforms,
	})
}

// summarizeRecent folds the per-platform rollup into a window-wide summary and
// keeps the five busiest platforms. The rollup is already ordered by count
// descending.
func summarizeRecent(platformData []datastore.PlatformSummaryData) (RecentSummary, []RecentPlatform) {
	var summary RecentSummary
	confidenceTotal := 0.0

	topPlatforms := make([]RecentPlatform, 0, 5)
	for _, p := range platformData {
		summary.Total += p.Count
		summary.PhotoCount += p.PhotoCount
		summary.VideoCount += p.VideoCount
		summary.VerifiedCount += p.VerifiedCount
		confidenceTotal += p.AvgConfidence * float64(p.Count)

		if len(topPlatforms) < 5 {
			topPlatforms = append(topPlatforms, RecentPlatform{
				Platform: p.Platform,
				Count:    p.Count,
			})
		}
	}
	if summary.Total > 0 {
		summary.AvgConfidence = confidenceTotal / float64(summary.Total)
	}

	return summary, topPlatforms
}
