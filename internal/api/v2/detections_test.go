// internal/api/v2/detections_test.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/deepsentry/deepsentry-go/internal/errors"
)

func TestGetDetectionsPaginationParity(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	detections := []datastore.Detection{
		{ID: 1, MediaType: datastore.MediaTypeVideo, Title: "clip", ConfidenceScore: 0.97, DetectedDate: time.Now()},
		{ID: 2, MediaType: datastore.MediaTypePhoto, Title: "frame", ConfidenceScore: 0.91, DetectedDate: time.Now()},
	}

	// The count query must receive the identical filter instance used for the
	// data query.
	var dataFilter *datastore.DetectionFilter
	mockDS.On("SearchDetections", mock.Anything, 2, 0).
		Run(func(args mock.Arguments) {
			dataFilter = args.Get(0).(*datastore.DetectionFilter)
		}).
		Return(detections, nil)
	mockDS.On("CountDetections", mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		return f == dataFilter
	})).Return(int64(250), nil)

	ctx, rec := newTestContext(e, "/api/v2/detections?start_date=2026-08-01&end_date=2026-08-25&limit=2&min_confidence=0.9")
	require.NoError(t, controller.GetDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DetectionsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2)
	assert.Equal(t, int64(250), response.Pagination.Total)
	assert.Equal(t, 2, response.Pagination.Limit)
	assert.True(t, response.Pagination.HasMore)
	assert.Equal(t, "0.9700", response.Data[0].ConfidenceDisplay)
	mockDS.AssertExpectations(t)
}

func TestGetDetectionsLimitClamped(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	mockDS.On("SearchDetections", mock.Anything, maxListLimit, 0).
		Return([]datastore.Detection{}, nil)
	mockDS.On("CountDetections", mock.Anything).Return(int64(0), nil)

	ctx, rec := newTestContext(e, "/api/v2/detections?start_date=2026-08-01&end_date=2026-08-25&limit=5000")
	require.NoError(t, controller.GetDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestGetDetectionsRequireDateRange(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	cases := []struct {
		name   string
		target string
		field  string
	}{
		{"no dates", "/api/v2/detections", "start_date"},
		{"missing end", "/api/v2/detections?start_date=2026-08-01", "end_date"},
		{"missing start", "/api/v2/detections?end_date=2026-08-25", "start_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newTestContext(e, tc.target)
			require.NoError(t, controller.GetDetections(ctx))

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Contains(t, response.Message, tc.field)
		})
	}

	// Validation fails before any query executes
	mockDS.AssertNotCalled(t, "SearchDetections", mock.Anything, mock.Anything, mock.Anything)
	mockDS.AssertNotCalled(t, "CountDetections", mock.Anything)
}

func TestGetDetectionsInvalidDate(t *testing.T) {
	t.Parallel()

	e, _, controller := setupTestController(t)

	ctx, rec := newTestContext(e, "/api/v2/detections?start_date=08-25-2026")
	require.NoError(t, controller.GetDetections(ctx))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.CorrelationID)
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestGetDetectionsInvertedRange(t *testing.T) {
	t.Parallel()

	e, _, controller := setupTestController(t)

	ctx, rec := newTestContext(e, "/api/v2/detections?start_date=2026-08-25&end_date=2026-08-01")
	require.NoError(t, controller.GetDetections(ctx))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDetectionEndDateIsInclusive(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	mockDS.On("SearchDetections", mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		// end_date=2026-08-07 must cover the whole day, so the exclusive
		// bound is midnight of the 8th
		return f.End != nil && f.End.Equal(time.Date(2026, 8, 8, 0, 0, 0, 0, time.Local))
	}), defaultListLimit, 0).Return([]datastore.Detection{}, nil)
	mockDS.On("CountDetections", mock.Anything).Return(int64(0), nil)

	ctx, rec := newTestContext(e, "/api/v2/detections?start_date=2026-08-01&end_date=2026-08-07")
	require.NoError(t, controller.GetDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestGetDetectionNotFound(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	notFound := errors.Newf("detection 99 not found").
		Component("datastore").
		Category(errors.CategoryNotFound).
		Build()
	mockDS.On("Get", "99").Return(datastore.Detection{}, notFound)

	ctx, rec := newTestContext(e, "/api/v2/detections/99")
	ctx.SetPath("/api/v2/detections/:id")
	ctx.SetParamNames("id")
	ctx.SetParamValues("99")

	require.NoError(t, controller.GetDetection(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDetectionInvalidID(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	invalid := errors.Newf("invalid detection ID %q", "abc").
		Component("datastore").
		Category(errors.CategoryValidation).
		Build()
	mockDS.On("Get", "abc").Return(datastore.Detection{}, invalid)

	ctx, rec := newTestContext(e, "/api/v2/detections/abc")
	ctx.SetPath("/api/v2/detections/:id")
	ctx.SetParamNames("id")
	ctx.SetParamValues("abc")

	require.NoError(t, controller.GetDetection(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecentDetectionsHoursValidation(t *testing.T) {
	t.Parallel()

	e, _, controller := setupTestController(t)

	for _, hours := range []string{"0", "169", "-5", "abc"} {
		ctx, rec := newTestContext(e, "/api/v2/detections/recent?hours="+hours)
		require.NoError(t, controller.GetRecentDetections(ctx))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "hours=%s", hours)
	}
}

func TestGetRecentDetectionsDefaultWindow(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	before := time.Now().Add(-time.Duration(defaultRecentHours) * time.Hour)
	recentWindow := mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		return f.Start != nil && !f.Start.Before(before) && f.Start.Before(time.Now())
	})
	mockDS.On("SearchDetections", recentWindow, defaultListLimit, 0).
		Return([]datastore.Detection{{ID: 3, DetectedDate: time.Now()}}, nil)
	mockDS.On("GetPlatformSummaryData", recentWindow).Return([]datastore.PlatformSummaryData{
		{Platform: "clipshare", Count: 6, PhotoCount: 2, VideoCount: 4, AvgConfidence: 0.95, VerifiedCount: 3},
		{Platform: "imagehub", Count: 4, PhotoCount: 4, AvgConfidence: 0.90, VerifiedCount: 1},
	}, nil)

	ctx, rec := newTestContext(e, "/api/v2/detections/recent")
	require.NoError(t, controller.GetRecentDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response RecentDetectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Equal(t, defaultRecentHours, response.Hours)

	assert.Equal(t, 10, response.Summary.Total)
	assert.Equal(t, 6, response.Summary.PhotoCount)
	assert.Equal(t, 4, response.Summary.VideoCount)
	assert.Equal(t, 4, response.Summary.VerifiedCount)
	// Count-weighted: (0.95*6 + 0.90*4) / 10
	assert.InDelta(t, 0.93, response.Summary.AvgConfidence, 1e-9)

	require.Len(t, response.TopPlatforms, 2)
	assert.Equal(t, RecentPlatform{Platform: "clipshare", Count: 6}, response.TopPlatforms[0])
	mockDS.AssertExpectations(t)
}

func TestSummarizeRecentKeepsTopFivePlatforms(t *testing.T) {
	t.Parallel()

	rollup := make([]datastore.PlatformSummaryData, 8)
	for i := range rollup {
		rollup[i] = datastore.PlatformSummaryData{
			Platform:      fmt.Sprintf("platform-%d", i),
			Count:         100 - i,
			AvgConfidence: 0.9,
		}
	}

	summary, top := summarizeRecent(rollup)
	require.Len(t, top, 5)
	assert.Equal(t, "platform-0", top[0].Platform)
	assert.Equal(t, "platform-4", top[4].Platform)

	total := 0
	for _, p := range rollup {
		total += p.Count
	}
	assert.Equal(t, total, summary.Total)
}
