// config.go: settings struct and functions to load and save the DeepSentry configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for the main application log file.
type LogConfig struct {
	Enabled bool   // true to write an application log file
	Path    string // path to the log file
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string    // instance name, shown in logs and the health endpoint
	Log  LogConfig // main log file settings
}

// WebServerSettings contains settings for the HTTP API server.
type WebServerSettings struct {
	Enabled bool   // true to enable the API server
	Port    string // port to listen on
	Debug   bool   // true to enable debug logging for the web server
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool   // true to use SQLite
	Path    string // path to the database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool   // true to use MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects the storage backend.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// AlertsSettings contains settings for the alert watcher (the polling consumer).
type AlertsSettings struct {
	MinConfidence         float64  // confidence floor for alert candidates
	PollInterval          int      // seconds between alert checks
	SpikeThresholdPercent int      // user-side gate: minimum percent increase to notify on a spike
	Platforms             []string // optional platform allow-list, empty means all
	VerifiedOnly          bool     // true to alert only on verified detections
	MaxNotifications      int      // bounded retention for the notification store
	SessionPath           string   // path to the watcher session file (watermark and read flags)
	ServerURL             string   // base URL of the API server the watcher polls
}

// ExportSettings contains defaults for detection export.
type ExportSettings struct {
	DefaultFormat string // "csv" or "json"
	Path          string // directory for CLI export output
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug output across components

	Main      MainSettings
	WebServer WebServerSettings
	Output    OutputSettings
	Alerts    AlertsSettings
	Export    ExportSettings

	Version   string `yaml:"-"` // release version, injected at build time
	BuildDate string `yaml:"-"` // build date, injected at build time
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// struct, validates it, and stores it as the active instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment variables override file values, e.g. DEEPSENTRY_WEBSERVER_PORT
	viper.SetEnvPrefix("deepsentry")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file, run on defaults and create one for next time
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fall back to the working directory only
		return paths, nil //nolint:nilerr // missing user config dir is not fatal
	}
	paths = append(paths, filepath.Join(userConfigDir, "deepsentry"))

	return paths, nil
}

// createDefaultConfig writes the current defaults to a new config.yaml.
func createDefaultConfig(configDir string) error {
	configPath := filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return viper.ReadInConfig()
}

// SaveSettings writes the given settings to the given path as YAML.
func SaveSettings(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating settings directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}
