// internal/api/v2/alerts.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deepsentry/deepsentry-go/internal/alerting"
	"github.com/deepsentry/deepsentry-go/internal/errors"
)

// AlertCheckResponse is the JSON shape of an alert check. CheckTime is always
// present so pollers can advance their watermark even on an empty result.
type AlertCheckResponse struct {
	Alerts        []DetectionResponse `json:"alerts"`
	TotalAlerts   int                 `json:"total_alerts"`
	SpikeDetected bool                `json:"spike_detected"`
	SpikeInfo     *alerting.SpikeInfo `json:"spike_info"`
	CheckTime     string              `json:"check_time"`
}

// initAlertRoutes registers the alert-related routes
func (c *Controller) initAlertRoutes() {
	c.Group.GET("/alerts/check", c.CheckAlerts)
}

// CheckAlerts handles GET /api/v2/alerts/check. Callers pass their previous
// check_time back as since; detections at or before it are excluded.
func (c *Controller) CheckAlerts(ctx echo.Context) error {
	params := &alerting.CheckParams{}

	if confStr := ctx.QueryParam("min_confidence"); confStr != "" {
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil || conf < 0 || conf > 1 {
			return c.HandleError(ctx,
				errors.Newf("invalid min_confidence %q, expected a value in [0, 1]", confStr).
					Component("api").
					Category(errors.CategoryValidation).
					Build(),
				"Invalid min_confidence parameter", http.StatusBadRequest)
		}
		params.MinConfidence = conf
	}

	if sinceStr := ctx.QueryParam("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return c.HandleError(ctx,
				errors.Newf("invalid since %q, expected RFC 3339 timestamp", sinceStr).
					Component("api").
					Category(errors.CategoryValidation).
					Build(),
				"Invalid since parameter", http.StatusBadRequest)
		}
		params.LastCheckTime = &since
	}

	if platformsStr := ctx.QueryParam("platforms"); platformsStr != "" {
		for _, platform := range strings.Split(platformsStr, ",") {
			if platform = strings.TrimSpace(platform); platform != "" {
				params.Platforms = append(params.Platforms, platform)
			}
		}
	}

	if verifiedStr := ctx.QueryParam("verified_only"); verifiedStr != "" {
		verifiedOnly, err := strconv.ParseBool(verifiedStr)
		if err != nil {
			return c.HandleError(ctx,
				errors.Newf("invalid verified_only %q, expected true or false", verifiedStr).
					Component("api").
					Category(errors.CategoryValidation).
					Build(),
				"Invalid verified_only parameter", http.StatusBadRequest)
		}
		params.VerifiedOnly = verifiedOnly
	}

	checkStart := time.Now()
	result, err := c.Evaluator.Check(params)
	if c.metrics != nil && c.metrics.Alerting != nil {
		c.metrics.Alerting.RecordCheck(time.Since(checkStart).Seconds(), err)
	}
	if err != nil {
		return c.HandleError(ctx, err, "Alert check failed", http.StatusInternalServerError)
	}

	if c.metrics != nil && c.metrics.Alerting != nil {
		c.metrics.Alerting.RecordAlerts(result.TotalAlerts)
		if result.SpikeDetected {
			c.metrics.Alerting.RecordSpike()
		}
	}

	return ctx.JSON(http.StatusOK, AlertCheckResponse{
		Alerts:        detectionsToResponses(result.Alerts),
		TotalAlerts:   result.TotalAlerts,
		SpikeDetected: result.SpikeDetected,
		SpikeInfo:     result.SpikeInfo,
		CheckTime:     result.CheckTime.Format(time.RFC3339),
	})
}
