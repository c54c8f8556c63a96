// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "DeepSentry")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/deepsentry.log")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "deepsentry.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "deepsentry")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "deepsentry")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("alerts.minconfidence", 0.9)
	viper.SetDefault("alerts.pollinterval", 60)
	viper.SetDefault("alerts.spikethresholdpercent", 50)
	viper.SetDefault("alerts.platforms", []string{})
	viper.SetDefault("alerts.verifiedonly", false)
	viper.SetDefault("alerts.maxnotifications", 200)
	viper.SetDefault("alerts.sessionpath", "deepsentry-session.json")
	viper.SetDefault("alerts.serverurl", "http://localhost:8090")

	viper.SetDefault("export.defaultformat", "csv")
	viper.SetDefault("export.path", "exports/")
}
