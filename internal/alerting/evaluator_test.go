package alerting

import (
	"testing"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDataStore implements datastore.Interface for evaluator tests
type mockDataStore struct {
	mock.Mock
}

func (m *mockDataStore) Open() error  { return m.Called().Error(0) }
func (m *mockDataStore) Close() error { return m.Called().Error(0) }

func (m *mockDataStore) Save(d *datastore.Detection) error { return m.Called(d).Error(0) }
func (m *mockDataStore) Delete(id string) error            { return m.Called(id).Error(0) }

func (m *mockDataStore) Get(id string) (datastore.Detection, error) {
	args := m.Called(id)
	return args.Get(0).(datastore.Detection), args.Error(1)
}

func (m *mockDataStore) SearchDetections(filter *datastore.DetectionFilter, limit, offset int) ([]datastore.Detection, error) {
	args := m.Called(filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Detection), args.Error(1)
}

func (m *mockDataStore) CountDetections(filter *datastore.DetectionFilter) (int64, error) {
	args := m.Called(filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockDataStore) GetTopDetections(filter *datastore.DetectionFilter, limit int) ([]datastore.Detection, error) {
	args := m.Called(filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Detection), args.Error(1)
}

func (m *mockDataStore) GetDailyAggregates(filter *datastore.DetectionFilter) ([]datastore.DailyAggregate, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.DailyAggregate), args.Error(1)
}

func (m *mockDataStore) GetPlatformSummaryData(filter *datastore.DetectionFilter) ([]datastore.PlatformSummaryData, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.PlatformSummaryData), args.Error(1)
}

func (m *mockDataStore) GetDistinctPlatforms() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDataStore) GetDailyDetectionCounts(since time.Time) ([]datastore.DailyCount, error) {
	args := m.Called(since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.DailyCount), args.Error(1)
}

func (m *mockDataStore) GetDailyStats(startDate, endDate string) ([]datastore.DailyStat, error) {
	args := m.Called(startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.DailyStat), args.Error(1)
}

func (m *mockDataStore) SaveDailyStat(stat *datastore.DailyStat) error {
	return m.Called(stat).Error(0)
}

// windowCounts builds a trailing window ending at today with the given per-day counts
func windowCounts(today time.Time, counts ...int) []datastore.DailyCount {
	out := make([]datastore.DailyCount, 0, len(counts))
	for i, c := range counts {
		date := today.AddDate(0, 0, -(len(counts) - 1 - i)).Format("2006-01-02")
		out = append(out, datastore.DailyCount{Date: date, Count: c})
	}
	return out
}

func TestDetectSpikeTripled(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	counts := windowCounts(today, 100, 100, 100, 100, 100, 100, 300)

	detected, info := DetectSpike(counts, today.Format("2006-01-02"))
	assert.True(t, detected)
	require.NotNil(t, info)
	assert.Equal(t, 300, info.TodayCount)
	assert.Equal(t, 100, info.AvgCount)
	assert.Equal(t, 200, info.PercentIncrease)
}

func TestDetectSpikeBelowMultiplier(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	// 120 <= 100 * 1.5, no spike
	counts := windowCounts(today, 100, 100, 100, 100, 100, 100, 120)

	detected, info := DetectSpike(counts, today.Format("2006-01-02"))
	assert.False(t, detected)
	assert.Nil(t, info)
}

func TestDetectSpikeExactlyAtMultiplierIsNotASpike(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	counts := windowCounts(today, 100, 100, 150)

	detected, _ := DetectSpike(counts, today.Format("2006-01-02"))
	assert.False(t, detected, "spike requires strictly greater than 1.5x")
}

func TestDetectSpikeInsufficientHistory(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)

	detected, info := DetectSpike(nil, today.Format("2006-01-02"))
	assert.False(t, detected)
	assert.Nil(t, info)

	detected, info = DetectSpike(windowCounts(today, 300), today.Format("2006-01-02"))
	assert.False(t, detected)
	assert.Nil(t, info)
}

func TestDetectSpikeZeroAverageGuarded(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	counts := windowCounts(today, 0, 0, 500)

	detected, info := DetectSpike(counts, today.Format("2006-01-02"))
	assert.False(t, detected, "zero trailing average must not produce a spike or a division error")
	assert.Nil(t, info)
}

func TestCheckUsesWatermarkAsExclusiveBound(t *testing.T) {
	t.Parallel()

	mockDS := new(mockDataStore)
	evaluator := NewEvaluator(mockDS, nil)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	evaluator.now = func() time.Time { return now }

	watermark := now.Add(-2 * time.Hour)

	mockDS.On("SearchDetections", mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		return f.After != nil && f.After.Equal(watermark) && f.MinConfidence == 0.95
	}), MaxAlerts, 0).Return([]datastore.Detection{{ID: 7, ConfidenceScore: 0.97}}, nil)
	mockDS.On("GetDailyDetectionCounts", mock.Anything).Return([]datastore.DailyCount{}, nil)

	result, err := evaluator.Check(&CheckParams{MinConfidence: 0.95, LastCheckTime: &watermark})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalAlerts)
	assert.Equal(t, now, result.CheckTime)
	assert.False(t, result.SpikeDetected)
	assert.Nil(t, result.SpikeInfo)
	mockDS.AssertExpectations(t)
}

func TestCheckDefaultsToTrailingDay(t *testing.T) {
	t.Parallel()

	mockDS := new(mockDataStore)
	evaluator := NewEvaluator(mockDS, nil)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	evaluator.now = func() time.Time { return now }

	mockDS.On("SearchDetections", mock.MatchedBy(func(f *datastore.DetectionFilter) bool {
		return f.After != nil && f.After.Equal(now.Add(-DefaultLookback)) &&
			f.MinConfidence == DefaultMinConfidence
	}), MaxAlerts, 0).Return([]datastore.Detection{}, nil)
	mockDS.On("GetDailyDetectionCounts", mock.Anything).Return(
		windowCounts(now, 100, 100, 100, 100, 100, 100, 300), nil)

	result, err := evaluator.Check(&CheckParams{})
	require.NoError(t, err)

	assert.Zero(t, result.TotalAlerts)
	assert.True(t, result.SpikeDetected)
	require.NotNil(t, result.SpikeInfo)
	assert.Equal(t, 200, result.SpikeInfo.PercentIncrease)
	mockDS.AssertExpectations(t)
}

func TestCheckReturnsAlertsWhenSpikeQueryFails(t *testing.T) {
	t.Parallel()

	mockDS := new(mockDataStore)
	evaluator := NewEvaluator(mockDS, nil)

	mockDS.On("SearchDetections", mock.Anything, MaxAlerts, 0).
		Return([]datastore.Detection{{ID: 1}}, nil)
	mockDS.On("GetDailyDetectionCounts", mock.Anything).
		Return(nil, assert.AnError)

	result, err := evaluator.Check(&CheckParams{})
	require.NoError(t, err, "spike evaluation is best effort")
	assert.Equal(t, 1, result.TotalAlerts)
	assert.False(t, result.SpikeDetected)
}
