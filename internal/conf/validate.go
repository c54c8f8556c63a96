// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateAlertsSettings(&settings.Alerts); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateExportSettings(&settings.Export); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWebServerSettings(ws *WebServerSettings) error {
	if !ws.Enabled {
		return nil
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid webserver port: %s", ws.Port)
	}
	return nil
}

func validateOutputSettings(out *OutputSettings) error {
	if !out.SQLite.Enabled && !out.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable output.sqlite or output.mysql")
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	if out.MySQL.Enabled {
		if out.MySQL.Host == "" || out.MySQL.Database == "" || out.MySQL.Username == "" {
			return fmt.Errorf("output.mysql requires host, database and username")
		}
	}
	return nil
}

func validateAlertsSettings(alerts *AlertsSettings) error {
	if alerts.MinConfidence < 0 || alerts.MinConfidence > 1 {
		return fmt.Errorf("alerts.minconfidence must be between 0 and 1, got %f", alerts.MinConfidence)
	}
	if alerts.PollInterval < 5 {
		return fmt.Errorf("alerts.pollinterval must be at least 5 seconds, got %d", alerts.PollInterval)
	}
	if alerts.SpikeThresholdPercent < 0 {
		return fmt.Errorf("alerts.spikethresholdpercent must not be negative, got %d", alerts.SpikeThresholdPercent)
	}
	if alerts.MaxNotifications <= 0 {
		return fmt.Errorf("alerts.maxnotifications must be positive, got %d", alerts.MaxNotifications)
	}
	return nil
}

func validateExportSettings(export *ExportSettings) error {
	switch export.DefaultFormat {
	case "csv", "json":
		return nil
	default:
		return fmt.Errorf("export.defaultformat must be csv or json, got %q", export.DefaultFormat)
	}
}
