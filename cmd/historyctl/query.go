package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/models"
)

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print overall delay statistics over final journey segments",
		Args:  cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) (*models.OverallStats, error) {
			return svc.OverallStats(cmd.Context())
		}),
	}
}

func newLinesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lines",
		Short: "List every line seen in the logs",
		Args:  cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) ([]models.LineInfo, error) {
			return svc.Lines(cmd.Context())
		}),
	}
}

func newLineStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "line-stats",
		Short: "Print delay statistics per line, worst first",
		Args:  cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) ([]models.LineStats, error) {
			return svc.StatsByLine(cmd.Context())
		}),
	}
}

func newTimelineCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print delays bucketed over time",
		Long: `Print delays bucketed over time. With --weather, buckets are hourly and
carry the weather observed in that hour.`,
		Args: cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) (interface{}, error) {
			if withWeather, _ := cmd.Flags().GetBool("weather"); withWeather {
				return svc.HourlyDelaysWithWeather(cmd.Context())
			}
			return svc.DelaysOverTime(cmd.Context(), intFlag(cmd, "bucket-minutes"))
		}),
	}
	cmd.Flags().IntP("bucket-minutes", "b", history.DefaultBucketMinutes, "Bucket width in minutes")
	cmd.Flags().Bool("weather", false, "Join hourly buckets with weather observations")
	return cmd
}

func newHeatmapCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "heatmap",
		Short: "Print delays by local hour and weekday",
		Args:  cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) ([]models.HeatmapCell, error) {
			return svc.Heatmap(cmd.Context())
		}),
	}
}

func newSegmentsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Print the most delayed station pairs",
		Args:  cobra.NoArgs,
		RunE: run(o, func(cmd *cobra.Command, svc *history.Service) ([]models.SegmentStats, error) {
			sortBy, _ := cmd.Flags().GetString("sort-by")
			return svc.SegmentStats(cmd.Context(), history.SegmentParams{
				SortBy: sortBy,
				Limit:  intFlag(cmd, "limit"),
			})
		}),
	}
	cmd.Flags().StringP("sort-by", "s", string(models.SegmentSortAvg), "Ranking metric: avg, max or total")
	cmd.Flags().IntP("limit", "n", history.DefaultSegmentLimit, "Maximum number of station pairs")
	return cmd
}

func newJourneysCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journeys [line]",
		Short: "List segment rows, or the journeys of one line",
		Long: `Without an argument, list segment rows in time order, filtered by
--line and --vehicle-type. With a line argument, list that line's journeys
with their final delay, most recent first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return run(o, func(cmd *cobra.Command, svc *history.Service) (*models.LineJourneys, error) {
					return svc.JourneysByLine(cmd.Context(), args[0], intFlag(cmd, "limit"))
				})(cmd, args)
			}
			return run(o, func(cmd *cobra.Command, svc *history.Service) (*models.SegmentPage, error) {
				return svc.ListSegments(cmd.Context(), history.ListParams{
					Limit:       intFlag(cmd, "limit"),
					Offset:      intFlag(cmd, "offset"),
					Line:        stringFlag(cmd, "line"),
					VehicleType: stringFlag(cmd, "vehicle-type"),
				})
			})(cmd, args)
		},
	}
	cmd.Flags().IntP("limit", "n", history.DefaultListLimit, "Maximum number of results")
	cmd.Flags().Int("offset", 0, "Number of rows to skip")
	cmd.Flags().String("line", "", "Only rows of this line")
	cmd.Flags().String("vehicle-type", "", "Only rows of this vehicle type")
	return cmd
}

func newJourneyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "journey <journey-id>",
		Short: "Print every observed segment of one journey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, func(cmd *cobra.Command, svc *history.Service) (*models.JourneyDetail, error) {
				detail, err := svc.JourneyDetail(cmd.Context(), args[0])
				if err != nil {
					return nil, err
				}
				if detail.IsEmpty() {
					return nil, fmt.Errorf("journey %s not found", args[0])
				}
				return detail, nil
			})(cmd, args)
		},
	}
}
