package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbpranger/delay-api/config"
	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/logging"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	dataDir       string
	transportGlob string
	weatherGlob   string
	timezone      string
	logLevel      string
}

func newRootCmd() *cobra.Command {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Ignoring configuration file", "error", err)
		cfg = config.Default()
	}

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "historyctl",
		Short: "Query the transit delay history from the command line",
		Long: `historyctl loads the journey and weather logs from a directory and runs
the same aggregations the delay API serves, printing JSON or CSV.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, os.Getenv("LOG_FORMAT")))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.dataDir, "data-dir", "d", cfg.DataDir, "Directory holding the JSONL logs")
	flags.StringVar(&opts.transportGlob, "transport-glob", cfg.TransportGlob, "Glob matching transport log files")
	flags.StringVar(&opts.weatherGlob, "weather-glob", cfg.WeatherGlob, "Glob matching weather log files")
	flags.StringVar(&opts.timezone, "timezone", cfg.Timezone, "Time zone for hour and weekday aggregations")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newStatsCmd(opts),
		newLinesCmd(opts),
		newLineStatsCmd(opts),
		newTimelineCmd(opts),
		newHeatmapCmd(opts),
		newSegmentsCmd(opts),
		newJourneysCmd(opts),
		newJourneyCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// open builds the in-memory snapshot for one command run
func (o *rootOptions) open(cmd *cobra.Command) (*history.Service, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.timezone, err)
	}
	return history.Load(cmd.Context(), history.Options{
		DataDir:       o.dataDir,
		TransportGlob: o.transportGlob,
		WeatherGlob:   o.weatherGlob,
		Location:      loc,
	})
}

// run opens the snapshot, calls query and prints its result as JSON
func run[T any](o *rootOptions, query func(cmd *cobra.Command, svc *history.Service) (T, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := o.open(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := query(cmd, svc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// intFlag returns nil unless the flag was set so the service default applies
func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
