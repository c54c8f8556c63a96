// Package export serializes detection result sets and rollups for download.
// Both formats share the same column set and row order; only the null
// representation differs (empty field in CSV, absent in JSON).
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/deepsentry/deepsentry-go/internal/errors"
)

// Format identifies an export serialization format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format string, defaulting to CSV when empty.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errors.Newf("unsupported export format %q", s).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// detectionHeader is the shared column set for detection exports.
var detectionHeader = []string{
	"id", "media_type", "title", "description", "source_platform",
	"detection_method", "confidence_score", "is_verified",
	"detected_date", "upload_date", "media_url", "thumbnail_url",
	"file_size_mb", "duration_seconds", "resolution", "tags",
}

// detectionRecord mirrors detectionHeader for structured output. Optional
// fields are omitted when unset, matching empty CSV fields.
type detectionRecord struct {
	ID              uint     `json:"id"`
	MediaType       string   `json:"media_type"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	SourcePlatform  string   `json:"source_platform,omitempty"`
	DetectionMethod string   `json:"detection_method,omitempty"`
	ConfidenceScore string   `json:"confidence_score"`
	IsVerified      bool     `json:"is_verified"`
	DetectedDate    string   `json:"detected_date"`
	UploadDate      string   `json:"upload_date,omitempty"`
	MediaURL        string   `json:"media_url,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	FileSizeMB      *float64 `json:"file_size_mb,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	Resolution      string   `json:"resolution,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// formatConfidence renders a confidence score with its fixed 4 decimal places.
func formatConfidence(score float64) string {
	return strconv.FormatFloat(score, 'f', 4, 64)
}

func toRecord(d *datastore.Detection) detectionRecord {
	rec := detectionRecord{
		ID:              d.ID,
		MediaType:       d.MediaType,
		Title:           d.Title,
		Description:     d.Description,
		SourcePlatform:  d.SourcePlatform,
		DetectionMethod: d.DetectionMethod,
		ConfidenceScore: formatConfidence(d.ConfidenceScore),
		IsVerified:      d.IsVerified,
		DetectedDate:    d.DetectedDate.Format(time.RFC3339),
		MediaURL:        d.MediaURL,
		ThumbnailURL:    d.ThumbnailURL,
		Resolution:      d.Resolution,
		Tags:            d.Tags,
	}
	if d.UploadDate != nil {
		rec.UploadDate = d.UploadDate.Format(time.RFC3339)
	}
	if d.FileSizeMB > 0 {
		size := d.FileSizeMB
		rec.FileSizeMB = &size
	}
	if d.MediaType == datastore.MediaTypeVideo && d.DurationSeconds > 0 {
		duration := d.DurationSeconds
		rec.DurationSeconds = &duration
	}
	return rec
}

// WriteDetectionsCSV writes detections as RFC 4180 CSV: fields containing
// commas, quotes or newlines are quoted with embedded quotes doubled.
func WriteDetectionsCSV(w io.Writer, detections []datastore.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detectionHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range detections {
		rec := toRecord(&detections[i])
		row := []string{
			strconv.FormatUint(uint64(rec.ID), 10),
			rec.MediaType,
			rec.Title,
			rec.Description,
			rec.SourcePlatform,
			rec.DetectionMethod,
			rec.ConfidenceScore,
			strconv.FormatBool(rec.IsVerified),
			rec.DetectedDate,
			rec.UploadDate,
			rec.MediaURL,
			rec.ThumbnailURL,
			"",
			"",
			rec.Resolution,
			strings.Join(rec.Tags, ";"),
		}
		if rec.FileSizeMB != nil {
			row[12] = strconv.FormatFloat(*rec.FileSizeMB, 'f', 2, 64)
		}
		if rec.DurationSeconds != nil {
			row[13] = strconv.Itoa(*rec.DurationSeconds)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDetectionsJSON writes detections as a JSON array with the same fields
// and row order as the CSV output.
func WriteDetectionsJSON(w io.Writer, detections []datastore.Detection) error {
	records := make([]detectionRecord, 0, len(detections))
	for i := range detections {
		records = append(records, toRecord(&detections[i]))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode detections to JSON: %w", err)
	}
	return nil
}

// dailyHeader is the shared column set for temporal rollup exports, rows
// ascending by day.
var dailyHeader = []string{
	"date", "photo_count", "video_count", "total_count", "avg_confidence", "verified_count",
}

// dailyRecord mirrors dailyHeader for structured output.
type dailyRecord struct {
	Date          string `json:"date"`
	PhotoCount    int    `json:"photo_count"`
	VideoCount    int    `json:"video_count"`
	TotalCount    int    `json:"total_count"`
	AvgConfidence string `json:"avg_confidence"`
	VerifiedCount int    `json:"verified_count"`
}

// WriteDailyAggregatesCSV writes per-day rollups as CSV.
func WriteDailyAggregatesCSV(w io.Writer, aggregates []datastore.DailyAggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range aggregates {
		a := &aggregates[i]
		row := []string{
			a.Date,
			strconv.Itoa(a.PhotoCount),
			strconv.Itoa(a.VideoCount),
			strconv.Itoa(a.TotalCount),
			formatConfidence(a.AvgConfidence),
			strconv.Itoa(a.VerifiedCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDailyAggregatesJSON writes per-day rollups as JSON with the same
// columns and row order as the CSV output.
func WriteDailyAggregatesJSON(w io.Writer, aggregates []datastore.DailyAggregate) error {
	records := make([]dailyRecord, 0, len(aggregates))
	for i := range aggregates {
		a := &aggregates[i]
		records = append(records, dailyRecord{
			Date:          a.Date,
			PhotoCount:    a.PhotoCount,
			VideoCount:    a.VideoCount,
			TotalCount:    a.TotalCount,
			AvgConfidence: formatConfidence(a.AvgConfidence),
			VerifiedCount: a.VerifiedCount,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode daily aggregates to JSON: %w", err)
	}
	return nil
}

// Filename builds an export attachment filename carrying the date range.
func Filename(prefix, startDate, endDate string, format Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, startDate, endDate, format)
}
