// Package alerting identifies detections newer than a caller-supplied
// watermark that meet an alert threshold, and separately detects anomalous
// daily detection volume.
package alerting

import (
	"log/slog"
	"math"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/datastore"
)

const (
	// SpikeMultiplier is the fixed server-side spike trigger: today's count
	// must exceed this multiple of the trailing average.
	SpikeMultiplier = 1.5

	// SpikeWindowDays is the trailing window, including today.
	SpikeWindowDays = 7

	// DefaultLookback bounds the alert selection when no watermark is given.
	DefaultLookback = 24 * time.Hour

	// DefaultMinConfidence is the confidence floor applied when the caller
	// does not supply one.
	DefaultMinConfidence = 0.9

	// MaxAlerts caps the alert result set per check.
	MaxAlerts = 50
)

// SpikeInfo describes an anomalous daily detection volume.
type SpikeInfo struct {
	TodayCount      int `json:"todayCount"`
	AvgCount        int `json:"avgCount"`
	PercentIncrease int `json:"percentIncrease"`
}

// CheckParams are the caller-supplied parameters for an alert check.
type CheckParams struct {
	MinConfidence float64    // confidence floor; <= 0 means DefaultMinConfidence
	LastCheckTime *time.Time // watermark; nil means now - DefaultLookback
	Platforms     []string   // optional platform allow-list
	VerifiedOnly  bool       // restrict to verified detections
}

// CheckResult is the outcome of a single alert check. CheckTime is always set
// so the caller has a watermark to advance to even when no alerts fired.
// Delivery is at-least-once: a caller that fails to persist CheckTime will see
// the same detections again on its next check.
type CheckResult struct {
	Alerts        []datastore.Detection
	TotalAlerts   int
	SpikeDetected bool
	SpikeInfo     *SpikeInfo
	CheckTime     time.Time
}

// Evaluator runs alert checks against the datastore.
type Evaluator struct {
	ds     datastore.Interface
	logger *slog.Logger
	now    func() time.Time // injectable clock for tests
}

// NewEvaluator creates an evaluator bound to the given datastore.
func NewEvaluator(ds datastore.Interface, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		ds:     ds,
		logger: logger,
		now:    time.Now,
	}
}

// Check selects detections newer than the watermark that meet the confidence
// floor, and evaluates daily volume for a spike.
func (e *Evaluator) Check(params *CheckParams) (*CheckResult, error) {
	now := e.now()

	minConfidence := params.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	after := now.Add(-DefaultLookback)
	if params.LastCheckTime != nil {
		after = *params.LastCheckTime
	}

	filter := &datastore.DetectionFilter{
		After:         &after,
		MinConfidence: minConfidence,
		Platforms:     params.Platforms,
	}
	if params.VerifiedOnly {
		verified := true
		filter.Verified = &verified
	}

	alerts, err := e.ds.SearchDetections(filter, MaxAlerts, 0)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Alerts:      alerts,
		TotalAlerts: len(alerts),
		CheckTime:   now,
	}

	// Spike evaluation runs on the full detection volume, independent of the
	// confidence floor and watermark above.
	windowStart := dayStart(now).AddDate(0, 0, -(SpikeWindowDays - 1))
	counts, err := e.ds.GetDailyDetectionCounts(windowStart)
	if err != nil {
		// Volume anomaly detection is best effort; new-detection alerts are
		// still worth returning.
		e.logger.Warn("spike evaluation failed", "error", err)
		return result, nil
	}

	result.SpikeDetected, result.SpikeInfo = DetectSpike(counts, now.Format("2006-01-02"))
	return result, nil
}

// DetectSpike compares today's detection count against the arithmetic mean of
// the remaining days in the window. A spike is declared when today's count
// exceeds SpikeMultiplier times that average. With fewer than 2 days of data,
// or a zero average, no spike determination is made.
func DetectSpike(counts []datastore.DailyCount, today string) (bool, *SpikeInfo) {
	if len(counts) < 2 {
		return false, nil
	}

	todayCount := 0
	historyTotal := 0
	historyDays := 0
	for _, c := range counts {
		if c.Date == today {
			todayCount = c.Count
			continue
		}
		historyTotal += c.Count
		historyDays++
	}
	if historyDays == 0 {
		return false, nil
	}

	avg := float64(historyTotal) / float64(historyDays)
	if avg == 0 {
		return false, nil
	}

	if float64(todayCount) <= avg*SpikeMultiplier {
		return false, nil
	}

	return true, &SpikeInfo{
		TodayCount:      todayCount,
		AvgCount:        int(math.Round(avg)),
		PercentIncrease: int(math.Round(100 * (float64(todayCount) - avg) / avg)),
	}
}

// dayStart returns midnight of t's calendar day in t's location.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
