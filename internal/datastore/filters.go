// filters.go: dynamic predicate assembly shared by list, rankings, platform
// aggregates, search, alert selection and export. All user-controlled values
// are carried as bound parameters, never interpolated into SQL text.
package datastore

import (
	"time"

	"gorm.io/gorm"
)

// DetectionFilter describes the predicate set applied to detection queries.
// The same filter instance is used for both the data query and its paired
// count query so that pagination totals always match the returned page.
type DetectionFilter struct {
	Start         *time.Time // inclusive lower bound on detected_date
	End           *time.Time // exclusive upper bound on detected_date
	After         *time.Time // exclusive watermark bound on detected_date
	MediaType     string     // "photo", "video"; "" or "all" means no predicate
	MinConfidence float64    // confidence_score >= MinConfidence, 0 means no predicate
	Platform      *string    // exact platform match
	Platforms     []string   // platform allow-list membership
	Verified      *bool      // exact verification match
	Query         string     // free-text match on title, description and method
}

// apply appends the filter's predicates to the query.
func (f *DetectionFilter) apply(query *gorm.DB) *gorm.DB {
	if f == nil {
		return query
	}
	if f.Start != nil {
		query = query.Where("detected_date >= ?", *f.Start)
	}
	if f.End != nil {
		query = query.Where("detected_date < ?", *f.End)
	}
	if f.After != nil {
		query = query.Where("detected_date > ?", *f.After)
	}
	if f.MediaType != "" && f.MediaType != MediaTypeAll {
		query = query.Where("media_type = ?", f.MediaType)
	}
	if f.MinConfidence > 0 {
		query = query.Where("confidence_score >= ?", f.MinConfidence)
	}
	if f.Platform != nil {
		query = query.Where("source_platform = ?", *f.Platform)
	}
	if len(f.Platforms) > 0 {
		query = query.Where("source_platform IN ?", f.Platforms)
	}
	if f.Verified != nil {
		query = query.Where("is_verified = ?", *f.Verified)
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		query = query.Where("title LIKE ? OR description LIKE ? OR detection_method LIKE ?",
			pattern, pattern, pattern)
	}
	return query
}

// SearchDetections retrieves detections matching the filter in the default
// sort order: newest first, ties broken by highest confidence.
func (ds *DataStore) SearchDetections(filter *DetectionFilter, limit, offset int) ([]Detection, error) {
	var detections []Detection
	start := time.Now()

	err := filter.apply(ds.DB.Model(&Detection{})).
		Order("detected_date DESC, confidence_score DESC").
		Limit(limit).
		Offset(offset).
		Find(&detections).Error
	recordQuery("search_detections", start, err)
	if err != nil {
		return nil, newDatabaseError(err, "search_detections")
	}
	return detections, nil
}

// CountDetections returns the total number of detections matching the filter.
// It applies the exact predicate set SearchDetections does, without pagination.
func (ds *DataStore) CountDetections(filter *DetectionFilter) (int64, error) {
	var count int64
	start := time.Now()

	err := filter.apply(ds.DB.Model(&Detection{})).Count(&count).Error
	recordQuery("count_detections", start, err)
	if err != nil {
		return 0, newDatabaseError(err, "count_detections")
	}
	return count, nil
}

// GetTopDetections retrieves the highest-confidence detections matching the
// filter, ties broken by most recent.
func (ds *DataStore) GetTopDetections(filter *DetectionFilter, limit int) ([]Detection, error) {
	var detections []Detection
	start := time.Now()

	err := filter.apply(ds.DB.Model(&Detection{})).
		Order("confidence_score DESC, detected_date DESC").
		Limit(limit).
		Find(&detections).Error
	recordQuery("top_detections", start, err)
	if err != nil {
		return nil, newDatabaseError(err, "top_detections")
	}
	return detections, nil
}
