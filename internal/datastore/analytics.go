// internal/datastore/analytics.go
package datastore

import (
	"fmt"
	"time"
)

// PlatformSummaryData contains aggregate statistics for a source platform over
// a queried range. Computed on read, never stored. An empty Platform value is
// its own group.
type PlatformSummaryData struct {
	Platform      string
	Count         int
	PhotoCount    int
	VideoCount    int
	AvgConfidence float64
	MaxConfidence float64
	VerifiedCount int
}

// DailyAggregate represents per-day detection statistics computed from the
// live detection table.
type DailyAggregate struct {
	Date          string
	PhotoCount    int
	VideoCount    int
	TotalCount    int
	AvgConfidence float64
	VerifiedCount int
}

// DailyCount represents detection counts by day
type DailyCount struct {
	Date  string
	Count int
}

// GetPlatformSummaryData retrieves aggregate statistics grouped by source
// platform for detections matching the filter, ordered by total count
// descending. Averages are computed at full precision; rounding happens at
// presentation time.
func (ds *DataStore) GetPlatformSummaryData(filter *DetectionFilter) ([]PlatformSummaryData, error) {
	var summaries []PlatformSummaryData
	start := time.Now()

	err := filter.apply(ds.DB.Model(&Detection{})).
		Select(`source_platform as platform,
			COUNT(*) as count,
			SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END) as photo_count,
			SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END) as video_count,
			AVG(confidence_score) as avg_confidence,
			MAX(confidence_score) as max_confidence,
			SUM(CASE WHEN is_verified THEN 1 ELSE 0 END) as verified_count`,
			MediaTypePhoto, MediaTypeVideo).
		Group("source_platform").
		Order("count DESC").
		Scan(&summaries).Error
	recordQuery("platform_summary", start, err)
	if err != nil {
		return nil, newDatabaseError(err, "platform_summary")
	}
	return summaries, nil
}

// GetDailyAggregates retrieves per-day detection statistics for detections
// matching the filter, ordered by day ascending.
func (ds *DataStore) GetDailyAggregates(filter *DetectionFilter) ([]DailyAggregate, error) {
	var aggregates []DailyAggregate
	dateFormat := ds.GetDateFormat()
	start := time.Now()

	err := filter.apply(ds.DB.Model(&Detection{})).
		Select(fmt.Sprintf(`%s as date,
			SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END) as photo_count,
			SUM(CASE WHEN media_type = ? THEN 1 ELSE 0 END) as video_count,
			COUNT(*) as total_count,
			AVG(confidence_score) as avg_confidence,
			SUM(CASE WHEN is_verified THEN 1 ELSE 0 END) as verified_count`, dateFormat),
			MediaTypePhoto, MediaTypeVideo).
		Group(dateFormat).
		Order("date ASC").
		Scan(&aggregates).Error
	recordQuery("daily_aggregates", start, err)
	if err != nil {
		return nil, newDatabaseError(err, "daily_aggregates")
	}
	return aggregates, nil
}

// GetDistinctPlatforms retrieves the distinct source platforms present in the
// detection table, sorted ascending.
func (ds *DataStore) GetDistinctPlatforms() ([]string, error) {
	var platforms []string

	err := ds.DB.Model(&Detection{}).
		Distinct("source_platform").
		Order("source_platform ASC").
		Pluck("source_platform", &platforms).Error
	if err != nil {
		return nil, newDatabaseError(err, "distinct_platforms")
	}
	return platforms, nil
}

// GetDailyDetectionCounts retrieves per-day detection counts for detections at
// or after the given instant, ordered by day ascending. Days with no
// detections produce no row.
func (ds *DataStore) GetDailyDetectionCounts(since time.Time) ([]DailyCount, error) {
	var counts []DailyCount
	dateFormat := ds.GetDateFormat()
	start := time.Now()

	err := ds.DB.Model(&Detection{}).
		Select(fmt.Sprintf("%s as date, COUNT(*) as count", dateFormat)).
		Where("detected_date >= ?", since).
		Group(dateFormat).
		Order("date ASC").
		Scan(&counts).Error
	recordQuery("daily_detection_counts", start, err)
	if err != nil {
		return nil, newDatabaseError(err, "daily_detection_counts")
	}
	return counts, nil
}
