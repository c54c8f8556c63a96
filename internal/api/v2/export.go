// internal/api/v2/export.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deepsentry/deepsentry-go/internal/export"
)

// maxExportRows bounds a single export download.
const maxExportRows = 10000

// initExportRoutes registers the export-related routes
func (c *Controller) initExportRoutes() {
	c.Group.GET("/export/detections", c.ExportDetections)
	c.Group.GET("/export/daily", c.ExportDailyAggregates)
}

// exportRangeLabels derives the filename date labels from the parsed filter.
func exportRangeLabels(start, end *time.Time) (startLabel, endLabel string) {
	startLabel, endLabel = "all", time.Now().Format("2006-01-02")
	if start != nil {
		startLabel = start.Format("2006-01-02")
	}
	if end != nil {
		// End is exclusive; the label names the last included day
		endLabel = end.AddDate(0, 0, -1).Format("2006-01-02")
	}
	return startLabel, endLabel
}

// ExportDetections handles GET /api/v2/export/detections. Rows are streamed
// in the default list order, identical for both formats.
func (c *Controller) ExportDetections(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	format, err := export.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	detections, err := c.DS.SearchDetections(filter, maxExportRows, 0)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve detections for export", http.StatusInternalServerError)
	}

	startLabel, endLabel := exportRangeLabels(filter.Start, filter.End)
	filename := export.Filename("detections", startLabel, endLabel, format)

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)

	if format == export.FormatJSON {
		return export.WriteDetectionsJSON(res, detections)
	}
	return export.WriteDetectionsCSV(res, detections)
}

// ExportDailyAggregates handles GET /api/v2/export/daily
func (c *Controller) ExportDailyAggregates(ctx echo.Context) error {
	filter, err := c.parseFilterParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := requireDateRange(filter); err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	format, err := export.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	aggregates, err := c.DS.GetDailyAggregates(filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to retrieve daily aggregates for export", http.StatusInternalServerError)
	}

	startLabel, endLabel := exportRangeLabels(filter.Start, filter.End)
	filename := export.Filename("daily", startLabel, endLabel, format)

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)

	if format == export.FormatJSON {
		return export.WriteDailyAggregatesJSON(res, aggregates)
	}
	return export.WriteDailyAggregatesCSV(res, aggregates)
}
