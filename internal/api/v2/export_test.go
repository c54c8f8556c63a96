// internal/api/v2/export_test.go
package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
)

func exportFixture() []datastore.Detection {
	return []datastore.Detection{
		{
			ID:              1,
			MediaType:       datastore.MediaTypeVideo,
			Title:           `Clip with "quotes", commas`,
			SourcePlatform:  "clipshare",
			ConfidenceScore: 0.9731,
			DetectedDate:    time.Date(2026, 8, 21, 11, 0, 0, 0, time.UTC),
			DurationSeconds: 30,
		},
	}
}

func TestExportDetectionsCSV(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)
	mockDS.On("SearchDetections", mock.Anything, maxExportRows, 0).Return(exportFixture(), nil)

	ctx, rec := newTestContext(e, "/api/v2/export/detections?format=csv&start_date=2026-08-01&end_date=2026-08-25")
	require.NoError(t, controller.ExportDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition),
		`attachment; filename="detections_2026-08-01_2026-08-25.csv"`)

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `Clip with "quotes", commas`, rows[1][2])
	assert.Equal(t, "0.9731", rows[1][6])
}

func TestExportDetectionsJSON(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)
	mockDS.On("SearchDetections", mock.Anything, maxExportRows, 0).Return(exportFixture(), nil)

	ctx, rec := newTestContext(e, "/api/v2/export/detections?format=json&start_date=2026-08-01&end_date=2026-08-25")
	require.NoError(t, controller.ExportDetections(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/json")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "0.9731", records[0]["confidence_score"])
}

func TestExportDetectionsRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	e, _, controller := setupTestController(t)

	ctx, rec := newTestContext(e, "/api/v2/export/detections?format=xml&start_date=2026-08-01&end_date=2026-08-25")
	require.NoError(t, controller.ExportDetections(ctx))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRequiresDateRange(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	handlers := []struct {
		name    string
		target  string
		handler func(echo.Context) error
	}{
		{"detections", "/api/v2/export/detections?format=csv", controller.ExportDetections},
		{"daily", "/api/v2/export/daily?format=csv&start_date=2026-08-01", controller.ExportDailyAggregates},
	}
	for _, tc := range handlers {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newTestContext(e, tc.target)
			require.NoError(t, tc.handler(ctx))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	mockDS.AssertNotCalled(t, "SearchDetections", mock.Anything, mock.Anything, mock.Anything)
	mockDS.AssertNotCalled(t, "GetDailyAggregates", mock.Anything)
}

func TestExportDailyAggregates(t *testing.T) {
	t.Parallel()

	e, mockDS, controller := setupTestController(t)

	aggregates := []datastore.DailyAggregate{
		{Date: "2026-08-20", PhotoCount: 3, VideoCount: 2, TotalCount: 5, AvgConfidence: 0.91, VerifiedCount: 1},
	}
	mockDS.On("GetDailyAggregates", mock.Anything).Return(aggregates, nil)

	ctx, rec := newTestContext(e, "/api/v2/export/daily?format=csv&start_date=2026-08-01&end_date=2026-08-25")
	require.NoError(t, controller.ExportDailyAggregates(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2026-08-20", "3", "2", "5", "0.9100", "1"}, rows[1])
}
