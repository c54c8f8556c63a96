// internal/api/v2/analytics_test.go
package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
)

func TestGetRankingsDenseRanks(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	now := time.Now()
	detections := []datastore.Detection{
		{ID: 1, ConfidenceScore: 0.99, DetectedDate: now},
		{ID: 2, ConfidenceScore: 0.99, DetectedDate: now.Add(-time.Hour)},
		{ID: 3, ConfidenceScore: 0.95, DetectedDate: now},
		{ID: 4, ConfidenceScore: 0.95, DetectedDate: now.Add(-time.Hour)},
		{ID: 5, ConfidenceScore: 0.90, DetectedDate: now},
	}
	mockDS.On("GetTopDetections", mock.Anything, defaultRankingsLimit).Return(detections, nil)

	ctx, rec := newTestContext(e, "/api/v2/analytics/rankings?start_date=2026-08-01&end_date=2026-08-07&media_type=video")
	require.NoError(t, controller.GetRankings(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response RankingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	ranked := response.Rankings
	require.Len(t, ranked, 5)

	assert.Equal(t, []int{1, 1, 2, 2, 3},
		[]int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank, ranked[3].Rank, ranked[4].Rank})
	assert.Equal(t, Period{StartDate: "2026-08-01", EndDate: "2026-08-07"}, response.Period)
	assert.Equal(t, "video", response.MediaType)
	mockDS.AssertExpectations(t)
}

func TestGetRankingsLimitClamped(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	mockDS.On("GetTopDetections", mock.Anything, maxRankingsLimit).
		Return([]datastore.Detection{}, nil)

	ctx, rec := newTestContext(e, "/api/v2/analytics/rankings?start_date=2026-08-01&end_date=2026-08-07&limit=500")
	require.NoError(t, controller.GetRankings(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	mockDS.AssertExpectations(t)
}

func TestAnalyticsRequireDateRange(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	handlers := []struct {
		name    string
		target  string
		handler func(echo.Context) error
	}{
		{"rankings", "/api/v2/analytics/rankings", controller.GetRankings},
		{"daily", "/api/v2/analytics/daily?start_date=2026-08-01", controller.GetDailyAnalytics},
		{"platforms", "/api/v2/analytics/platforms?end_date=2026-08-25", controller.GetPlatformAnalytics},
	}
	for _, tc := range handlers {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newTestContext(e, tc.target)
			require.NoError(t, tc.handler(ctx))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// Validation fails before any query executes
	mockDS.AssertNotCalled(t, "GetTopDetections", mock.Anything, mock.Anything)
	mockDS.AssertNotCalled(t, "GetDailyAggregates", mock.Anything)
	mockDS.AssertNotCalled(t, "GetPlatformSummaryData", mock.Anything)
}

func TestGetDailyAnalytics(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	aggregates := []datastore.DailyAggregate{
		{Date: "2026-08-20", PhotoCount: 3, VideoCount: 2, TotalCount: 5, AvgConfidence: 0.92, VerifiedCount: 1},
		{Date: "2026-08-21", PhotoCount: 1, VideoCount: 1, TotalCount: 2, AvgConfidence: 0.88, VerifiedCount: 0},
	}
	stats := []datastore.DailyStat{
		{Date: "2026-08-20", PhotosDetected: 3, VideosDetected: 2, PhotosAnalyzed: 40, VideosAnalyzed: 15, AvgConfidenceScore: 0.92},
	}

	mockDS.On("GetDailyAggregates", mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		return f.Start != nil && f.End != nil
	})).Return(aggregates, nil)
	mockDS.On("GetDailyStats", "2026-08-19", "2026-08-21").Return(stats, nil)

	ctx, rec := newTestContext(e, "/api/v2/analytics/daily?start_date=2026-08-19&end_date=2026-08-21")
	require.NoError(t, controller.GetDailyAnalytics(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DailyStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.RealtimeStats, 2)
	assert.Equal(t, "2026-08-20", response.RealtimeStats[0].Date)
	require.Len(t, response.HistoricalStats, 1)
	assert.Equal(t, 40, response.HistoricalStats[0].PhotosAnalyzed)
	mockDS.AssertExpectations(t)
}

func TestGetPlatformAnalytics(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	summaries := []datastore.PlatformSummaryData{
		{Platform: "clipshare", Count: 10, PhotoCount: 4, VideoCount: 6, AvgConfidence: 0.93125, MaxConfidence: 0.99, VerifiedCount: 3},
		{Platform: "", Count: 2, PhotoCount: 2, AvgConfidence: 0.85, MaxConfidence: 0.9},
	}
	mockDS.On("GetPlatformSummaryData", mock.Anything).Return(summaries, nil)

	ctx, rec := newTestContext(e, "/api/v2/analytics/platforms?start_date=2026-08-01&end_date=2026-08-25")
	require.NoError(t, controller.GetPlatformAnalytics(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	var response PlatformStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Platforms, 2)
	assert.Equal(t, "clipshare", response.Platforms[0].Platform)
	assert.Equal(t, "0.9313", response.Platforms[0].AvgConfidenceText)
	// Unattributed detections remain their own group
	assert.Equal(t, "", response.Platforms[1].Platform)
	assert.Equal(t, Period{StartDate: "2026-08-01", EndDate: "2026-08-25"}, response.Period)
	mockDS.AssertExpectations(t)
}

func TestGetPlatformsUsesCache(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	platforms := []string{"clipshare", "imagehub", "streamly"}
	mockDS.On("GetDistinctPlatforms").Return(platforms, nil).Once()

	for i := 0; i < 3; i++ {
		ctx, rec := newTestContext(e, "/api/v2/platforms")
		require.NoError(t, controller.GetPlatforms(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got PlatformListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, platforms, got.Platforms)
	}

	// Only the first request hits the datastore
	mockDS.AssertExpectations(t)
}
