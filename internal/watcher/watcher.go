// Package watcher implements the polling alert consumer. It periodically
// calls the alert check endpoint, turns new detections and volume spikes into
// local notifications, and advances a persistent watermark after each
// successful cycle.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepsentry/deepsentry-go/internal/api/v2"
	"github.com/deepsentry/deepsentry-go/internal/conf"
	"github.com/deepsentry/deepsentry-go/internal/errors"
	"github.com/deepsentry/deepsentry-go/internal/notification"
	"github.com/deepsentry/deepsentry-go/internal/observability/metrics"
)

const (
	// criticalConfidence promotes a high-confidence alert to critical priority.
	criticalConfidence = 0.95

	// minPollInterval guards against hammering the server on a misconfigured
	// interval.
	minPollInterval = 5 * time.Second

	requestTimeout = 30 * time.Second
)

// Watcher polls the alert check endpoint and emits notifications. Poll cycles
// run sequentially; a slow cycle delays the next tick rather than overlapping
// it.
type Watcher struct {
	settings *conf.Settings
	store    *notification.Store
	metrics  *metrics.AlertingMetrics
	client   *http.Client
	logger   *slog.Logger

	session     *Session
	sessionPath string
	now         func() time.Time
}

// New creates a watcher, loading any previous session from disk.
func New(settings *conf.Settings, store *notification.Store, logger *slog.Logger,
	alertMetrics *metrics.AlertingMetrics) (*Watcher, error) {

	if logger == nil {
		logger = slog.Default()
	}

	sessionPath := settings.Alerts.SessionPath
	session, err := LoadSession(sessionPath)
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryFileIO).
			Context("session_path", sessionPath).
			Build()
	}

	return &Watcher{
		settings:    settings,
		store:       store,
		metrics:     alertMetrics,
		client:      &http.Client{Timeout: requestTimeout},
		logger:      logger,
		session:     session,
		sessionPath: sessionPath,
		now:         time.Now,
	}, nil
}

// Store returns the watcher's notification store.
func (w *Watcher) Store() *notification.Store {
	return w.store
}

// Run polls until the context is cancelled. The first check runs immediately.
func (w *Watcher) Run(ctx context.Context) error {
	interval := time.Duration(w.settings.Alerts.PollInterval) * time.Second
	if interval < minPollInterval {
		interval = minPollInterval
	}

	w.logger.Info("watcher started",
		"interval", interval.String(),
		"server_url", w.settings.Alerts.ServerURL,
		"min_confidence", w.settings.Alerts.MinConfidence)

	w.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll runs one check cycle. Failures are logged and skipped; the watermark
// only advances after notifications for the cycle have been emitted, so a
// failed cycle is retried in full on the next tick.
func (w *Watcher) poll(ctx context.Context) {
	start := w.now()
	result, err := w.check(ctx)
	if w.metrics != nil {
		w.metrics.RecordCheck(time.Since(start).Seconds(), err)
	}
	if err != nil {
		w.logger.Warn("alert check failed", "error", err)
		return
	}

	w.emit(result)

	checkTime, err := time.Parse(time.RFC3339, result.CheckTime)
	if err != nil {
		w.logger.Warn("invalid check_time in response", "check_time", result.CheckTime, "error", err)
		return
	}

	w.session.LastCheckTime = checkTime
	if err := SaveSession(w.session, w.sessionPath); err != nil {
		// Next cycle re-alerts from the old watermark; duplicates beat losses
		w.logger.Warn("failed to persist session", "error", err)
	}
}

// check calls the alert check endpoint with the configured filters and the
// current watermark.
func (w *Watcher) check(ctx context.Context) (*api.AlertCheckResponse, error) {
	endpoint, err := url.JoinPath(w.settings.Alerts.ServerURL, "/api/v2/alerts/check")
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryConfiguration).
			Context("server_url", w.settings.Alerts.ServerURL).
			Build()
	}

	query := url.Values{}
	if w.settings.Alerts.MinConfidence > 0 {
		query.Set("min_confidence", strconv.FormatFloat(w.settings.Alerts.MinConfidence, 'f', -1, 64))
	}
	if !w.session.LastCheckTime.IsZero() {
		query.Set("since", w.session.LastCheckTime.Format(time.RFC3339))
	}
	if len(w.settings.Alerts.Platforms) > 0 {
		query.Set("platforms", strings.Join(w.settings.Alerts.Platforms, ","))
	}
	if w.settings.Alerts.VerifiedOnly {
		query.Set("verified_only", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("alert check returned status %d", resp.StatusCode).
			Component("watcher").
			Category(errors.CategoryHTTP).
			Build()
	}

	var result api.AlertCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(err).
			Component("watcher").
			Category(errors.CategoryHTTP).
			Build()
	}
	return &result, nil
}

// emit converts a check result into local notifications.
func (w *Watcher) emit(result *api.AlertCheckResponse) {
	for i := range result.Alerts {
		alert := &result.Alerts[i]

		priority := notification.PriorityHigh
		if alert.ConfidenceScore >= criticalConfidence {
			priority = notification.PriorityCritical
		}

		title := fmt.Sprintf("High confidence detection on %s", displayPlatform(alert.SourcePlatform))
		message := fmt.Sprintf("%s (%s, confidence %s)", alert.Title, alert.MediaType, alert.ConfidenceDisplay)

		n := notification.NewNotification(notification.TypeHighConfidence, priority, title, message).
			WithPayload("detection_id", alert.ID).
			WithPayload("platform", alert.SourcePlatform).
			WithPayload("confidence_score", alert.ConfidenceScore)
		w.saveNotification(n)
	}

	if result.SpikeDetected && result.SpikeInfo != nil &&
		result.SpikeInfo.PercentIncrease >= w.settings.Alerts.SpikeThresholdPercent {
		n := notification.NewNotification(
			notification.TypeSpike,
			notification.PriorityHigh,
			"Detection volume spike",
			fmt.Sprintf("%d detections today, %d%% above the recent average of %d",
				result.SpikeInfo.TodayCount, result.SpikeInfo.PercentIncrease, result.SpikeInfo.AvgCount),
		).
			WithPayload("today_count", result.SpikeInfo.TodayCount).
			WithPayload("avg_count", result.SpikeInfo.AvgCount).
			WithPayload("percent_increase", result.SpikeInfo.PercentIncrease)
		w.saveNotification(n)
	}
}

func (w *Watcher) saveNotification(n *notification.Notification) {
	if err := w.store.Save(n); err != nil {
		w.logger.Warn("failed to store notification", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.RecordNotification(string(n.Type), string(n.Priority))
	}
	w.logger.Info("notification emitted",
		"type", n.Type,
		"priority", n.Priority,
		"title", n.Title)
}

func displayPlatform(platform string) string {
	if platform == "" {
		return "unknown platform"
	}
	return platform
}
