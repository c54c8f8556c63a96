// Package watch implements the alert watcher command.
package watch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deepsentry/deepsentry-go/internal/conf"
	"github.com/deepsentry/deepsentry-go/internal/logging"
	"github.com/deepsentry/deepsentry-go/internal/notification"
	"github.com/deepsentry/deepsentry-go/internal/observability"
	"github.com/deepsentry/deepsentry-go/internal/watcher"
)

// Command returns the watch subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the API server for new alerts and volume spikes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(settings)
		},
	}

	cmd.PersistentFlags().StringVar(&settings.Alerts.ServerURL, "server-url",
		viper.GetString("alerts.serverurl"), "Base URL of the API server to poll")
	cmd.PersistentFlags().IntVar(&settings.Alerts.PollInterval, "interval",
		viper.GetInt("alerts.pollinterval"), "Seconds between alert checks")
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

// Run polls until a termination signal arrives.
func Run(settings *conf.Settings) error {
	logger := logging.ForService("watcher")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store := notification.NewStore(settings.Alerts.MaxNotifications)
	w, err := watcher.New(settings, store, logger, metrics.Alerting)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(ctx)
}
