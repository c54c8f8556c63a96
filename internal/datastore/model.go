// model.go this code defines the data model for the application
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Media type values for Detection.MediaType. MediaTypeAll is a filter value
// only and is never stored.
const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
	MediaTypeAll   = "all"
)

// TagList is an ordered list of tags stored as a JSON array. Semantically a
// set, but order is preserved for round-trip fidelity.
type TagList []string

// Value implements driver.Valuer, serializing the list to JSON.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner, deserializing a JSON array.
func (t *TagList) Scan(value any) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type for TagList: %T", value)
	}
}

// MetadataMap is an open-ended key/value structure stored as JSON. Opaque to
// this system.
type MetadataMap map[string]any

// Value implements driver.Valuer, serializing the map to JSON.
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner, deserializing a JSON object.
func (m *MetadataMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type for MetadataMap: %T", value)
	}
}

// Detection represents a single media item flagged as synthetically manipulated
type Detection struct {
	ID              uint   `gorm:"primaryKey"`
	MediaType       string `gorm:"type:varchar(10);index:idx_detections_mediatype"`
	MediaURL        string
	ThumbnailURL    string
	Title           string
	Description     string
	ConfidenceScore float64 `gorm:"index:idx_detections_date_confidence"`
	DetectionMethod string
	SourcePlatform  string     `gorm:"index:idx_detections_platform"`
	UploadDate      *time.Time // original media upload time, optional
	DetectedDate    time.Time  `gorm:"index:idx_detections_detected;index:idx_detections_date_confidence"`
	FileSizeMB      float64
	DurationSeconds int // video only
	Resolution      string
	IsVerified      bool        `gorm:"index:idx_detections_verified"` // set by manual review, external to this system
	Tags            TagList     `gorm:"type:text"`
	Metadata        MetadataMap `gorm:"type:text"`
}

// BeforeCreate defaults DetectedDate to the creation time.
func (d *Detection) BeforeCreate(tx *gorm.DB) error {
	if d.DetectedDate.IsZero() {
		d.DetectedDate = time.Now()
	}
	return nil
}

// DailyStat is a materialized daily rollup, one row per date. Written by an
// external batch process; read-only to the dashboard.
type DailyStat struct {
	ID                 uint   `gorm:"primaryKey"`
	Date               string `gorm:"uniqueIndex:idx_daily_stats_date;type:varchar(10)"`
	PhotosDetected     int
	VideosDetected     int
	PhotosAnalyzed     int
	VideosAnalyzed     int
	AvgConfidenceScore float64
}
