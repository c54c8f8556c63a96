// Package export implements the detection export command.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deepsentry/deepsentry-go/internal/conf"
	"github.com/deepsentry/deepsentry-go/internal/datastore"
	"github.com/deepsentry/deepsentry-go/internal/errors"
	"github.com/deepsentry/deepsentry-go/internal/export"
	"github.com/deepsentry/deepsentry-go/internal/logging"
)

// maxExportRows bounds a single export run.
const maxExportRows = 100000

type exportOptions struct {
	startDate string
	endDate   string
	format    string
	output    string
	platform  string
	mediaType string
	minConf   float64
}

// Command returns the export subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export detections to a CSV or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(settings, opts)
		},
	}

	cmd.Flags().StringVar(&opts.startDate, "start", "", "Start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&opts.endDate, "end", "", "End date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&opts.format, "format", viper.GetString("export.defaultformat"), "Output format: csv or json")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output file path, default derived from the date range")
	cmd.Flags().StringVar(&opts.platform, "platform", "", "Restrict to a source platform")
	cmd.Flags().StringVar(&opts.mediaType, "media-type", "", "Restrict to a media type: photo or video")
	cmd.Flags().Float64Var(&opts.minConf, "min-confidence", 0, "Minimum confidence score")

	return cmd
}

// Run performs the export against the configured datastore.
func Run(settings *conf.Settings, opts *exportOptions) error {
	logger := logging.ForService("export")

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	filter, startLabel, endLabel, err := buildFilter(opts)
	if err != nil {
		return err
	}

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() { _ = ds.Close() }()

	detections, err := ds.SearchDetections(filter, maxExportRows, 0)
	if err != nil {
		return err
	}

	outputPath := opts.output
	if outputPath == "" {
		outputPath = filepath.Join(settings.Export.Path,
			export.Filename("detections", startLabel, endLabel, format))
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", outputPath).
			Build()
	}
	defer func() { _ = f.Close() }()

	if format == export.FormatJSON {
		err = export.WriteDetectionsJSON(f, detections)
	} else {
		err = export.WriteDetectionsCSV(f, detections)
	}
	if err != nil {
		return err
	}

	if logger != nil {
		logger.Info("export complete",
			"rows", len(detections),
			"format", string(format),
			"path", outputPath)
	}
	fmt.Printf("Exported %d detections to %s\n", len(detections), outputPath)
	return nil
}

// buildFilter translates the CLI options into a detection filter and filename
// labels. The end date is made exclusive by advancing one day.
func buildFilter(opts *exportOptions) (*datastore.DetectionFilter, string, string, error) {
	filter := &datastore.DetectionFilter{
		MinConfidence: opts.minConf,
		MediaType:     opts.mediaType,
	}
	if opts.platform != "" {
		filter.Platform = &opts.platform
	}

	startLabel, endLabel := "all", time.Now().Format("2006-01-02")

	if opts.startDate != "" {
		start, err := time.ParseInLocation("2006-01-02", opts.startDate, time.Local)
		if err != nil {
			return nil, "", "", errors.Newf("invalid start date %q, expected YYYY-MM-DD", opts.startDate).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
		filter.Start = &start
		startLabel = opts.startDate
	}

	if opts.endDate != "" {
		end, err := time.ParseInLocation("2006-01-02", opts.endDate, time.Local)
		if err != nil {
			return nil, "", "", errors.Newf("invalid end date %q, expected YYYY-MM-DD", opts.endDate).
				Component("export").
				Category(errors.CategoryValidation).
				Build()
		}
		endExclusive := end.AddDate(0, 0, 1)
		filter.End = &endExclusive
		endLabel = opts.endDate
	}

	if filter.Start != nil && filter.End != nil && !filter.Start.Before(*filter.End) {
		return nil, "", "", errors.Newf("start date must not be after end date").
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	return filter, startLabel, endLabel, nil
}
