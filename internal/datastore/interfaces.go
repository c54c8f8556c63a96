// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/conf"
	"github.com/deepsentry/deepsentry-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines the
// operations the dashboard needs.
type Interface interface {
	Open() error
	Close() error

	// Detection records. Save/Delete exist for the external ingest and tests;
	// the dashboard endpoints are read-only.
	Save(detection *Detection) error
	Delete(id string) error
	Get(id string) (Detection, error)

	// Filtered reads sharing the predicate composer.
	SearchDetections(filter *DetectionFilter, limit, offset int) ([]Detection, error)
	CountDetections(filter *DetectionFilter) (int64, error)
	GetTopDetections(filter *DetectionFilter, limit int) ([]Detection, error)

	// Aggregates.
	GetDailyAggregates(filter *DetectionFilter) ([]DailyAggregate, error)
	GetPlatformSummaryData(filter *DetectionFilter) ([]PlatformSummaryData, error)
	GetDistinctPlatforms() ([]string, error)
	GetDailyDetectionCounts(since time.Time) ([]DailyCount, error)

	// Materialized daily rollups, written by an external batch process.
	GetDailyStats(startDate, endDate string) ([]DailyStat, error)
	SaveDailyStat(stat *DailyStat) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Settings validation rejects this configuration before we get here
		return nil
	}
}

// newDatabaseError wraps a gorm error with datastore metadata. Raw database
// error text is logged by callers but never surfaced to API clients.
func newDatabaseError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// ErrRecordNotFound reports whether err is a missing-record error.
func ErrRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Save stores a detection record.
func (ds *DataStore) Save(detection *Detection) error {
	if err := ds.DB.Create(detection).Error; err != nil {
		return newDatabaseError(err, "save_detection")
	}
	return nil
}

// Get retrieves a detection by its ID.
func (ds *DataStore) Get(id string) (Detection, error) {
	detectionID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return Detection{}, errors.Newf("invalid detection ID %q", id).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	var detection Detection
	if err := ds.DB.First(&detection, uint(detectionID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Detection{}, errors.Newf("detection %d not found", detectionID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Detection{}, newDatabaseError(err, "get_detection")
	}
	return detection, nil
}

// Delete removes a detection record.
func (ds *DataStore) Delete(id string) error {
	detectionID, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return errors.Newf("invalid detection ID %q", id).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Detection{}, uint(detectionID)).Error; err != nil {
			return newDatabaseError(err, "delete_detection")
		}
		return nil
	})
}

// GetDailyStats retrieves materialized daily rollups for an inclusive date range.
func (ds *DataStore) GetDailyStats(startDate, endDate string) ([]DailyStat, error) {
	var stats []DailyStat

	err := ds.DB.Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date ASC").
		Find(&stats).Error
	if err != nil {
		return nil, newDatabaseError(err, "get_daily_stats")
	}
	return stats, nil
}

// SaveDailyStat inserts or updates the rollup row for stat.Date. Used by the
// external batch process and tests; the dashboard never writes rollups.
func (ds *DataStore) SaveDailyStat(stat *DailyStat) error {
	var existing DailyStat
	err := ds.DB.Where("date = ?", stat.Date).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := ds.DB.Create(stat).Error; err != nil {
			return newDatabaseError(err, "save_daily_stat")
		}
		return nil
	case err != nil:
		return newDatabaseError(err, "save_daily_stat")
	}

	stat.ID = existing.ID
	if err := ds.DB.Save(stat).Error; err != nil {
		return newDatabaseError(err, "save_daily_stat")
	}
	return nil
}

// GetDateFormat returns the database-specific SQL fragment for truncating the
// detected_date column to a calendar day.
func (ds *DataStore) GetDateFormat() string {
	switch ds.DB.Dialector.Name() {
	case "sqlite":
		return "date(detected_date)"
	case "mysql":
		return "DATE(detected_date)"
	default:
		return "date(detected_date)"
	}
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Detection{}, &DailyStat{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %v", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
