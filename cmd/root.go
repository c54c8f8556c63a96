package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	exportcmd "github.com/deepsentry/deepsentry-go/cmd/export"
	"github.com/deepsentry/deepsentry-go/cmd/server"
	"github.com/deepsentry/deepsentry-go/cmd/watch"
	"github.com/deepsentry/deepsentry-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deepsentry",
		Short: "DeepSentry deepfake detection dashboard",
		Long:  "DeepSentry serves a dashboard API over detected synthetic media, exports detection data, and watches for new high-confidence detections.",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		server.Command(settings),
		exportcmd.Command(settings),
		watch.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(fmt.Errorf("error binding flags: %w", err))
	}
}
