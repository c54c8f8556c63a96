// internal/api/v2/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/deepsentry/deepsentry-go/internal/alerting"
	"github.com/deepsentry/deepsentry-go/internal/conf"
	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/deepsentry/deepsentry-go/internal/logging"
	"github.com/deepsentry/deepsentry-go/internal/observability"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Evaluator *alerting.Evaluator

	logger         *log.Logger
	apiLogger      *slog.Logger // structured logger for API operations
	apiLoggerClose func() error
	platformCache  *cache.Cache // cache for the distinct platform list
	metrics        *observability.Metrics
	startTime      time.Time
}

const platformCacheKey = "platforms"

// New creates a new API controller and registers all routes.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics) (*Controller, error) {
	return NewWithOptions(e, ds, settings, logger, metrics, true)
}

// NewWithOptions creates a new API controller with optional route
// initialization. Set initializeRoutes to false in tests that register
// handlers directly.
func NewWithOptions(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics, initializeRoutes bool) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Evaluator: alerting.NewEvaluator(ds, logging.ForService("alerting")),
		logger:    logger,
		// Platform lists change rarely; 5 minutes keeps the filter dropdown
		// from hammering the database.
		platformCache: cache.New(5*time.Minute, 10*time.Minute),
		metrics:       metrics,
		startTime:     time.Now(),
	}

	if settings.Main.Log.Enabled {
		apiLogger, closeFunc, err := logging.NewFileLogger(settings.Main.Log.Path, "api", slog.LevelInfo)
		if err != nil {
			logger.Printf("Warning: Failed to initialize API file logger: %v", err)
		} else {
			c.apiLogger = apiLogger
			c.apiLoggerClose = closeFunc
		}
	}
	if c.apiLogger == nil {
		c.apiLogger = logging.ForService("api")
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(c.LoggingMiddleware())

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// LoggingMiddleware creates a middleware function that logs API requests and
// records request metrics.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			elapsed := time.Since(start)

			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordHTTPRequest(req.Method, ctx.Path(), res.Status, elapsed.Seconds())
			}

			if c.apiLogger != nil {
				attrs := []slog.Attr{
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("query", req.URL.RawQuery),
					slog.Int("status", res.Status),
					slog.String("ip", ctx.RealIP()),
					slog.Int64("latency_ms", elapsed.Milliseconds()),
				}
				if err != nil {
					attrs = append(attrs, slog.Any("error", err))
				}
				c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)
			}

			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"detection routes", c.initDetectionRoutes},
		{"analytics routes", c.initAnalyticsRoutes},
		{"search routes", c.initSearchRoutes},
		{"alert routes", c.initAlertRoutes},
		{"export routes", c.initExportRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	if c.Settings.WebServer.Debug {
		response["environment"] = "development"
	} else {
		response["environment"] = "production"
	}

	// Simple connectivity probe against the datastore. Backend error text is
	// logged against a correlation ID, never returned to the client.
	dbStatus := "connected"
	if _, err := c.DS.SearchDetections(&datastore.DetectionFilter{}, 1, 0); err != nil {
		dbStatus = "disconnected"
		correlationID := generateCorrelationID()
		c.logger.Printf("Health check database probe failed [%s]: %v", correlationID, err)
		if c.apiLogger != nil {
			c.apiLogger.Error("health check database probe failed",
				"correlation_id", correlationID,
				"error", err.Error())
		}
	}
	response["database_status"] = dbStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown performs cleanup of resources used by the API controller.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}

	if c.platformCache != nil {
		c.platformCache.Flush()
	}
}

// ErrorResponse is the uniform error envelope returned by all endpoints.
// Internal error text is logged against the correlation ID, never returned.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(message string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:         http.StatusText(code),
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response. The
// underlying error is logged with a correlation ID; only the stable message
// is sent to the client.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(message, code)

	ip := ctx.RealIP()
	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		var errorStr string
		if err != nil {
			errorStr = err.Error()
		} else {
			errorStr = message
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	if c.metrics != nil && c.metrics.HTTP != nil {
		errorType := "system"
		if code >= 400 && code < 500 {
			errorType = "validation"
		}
		c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, ctx.Path(), errorType)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}
