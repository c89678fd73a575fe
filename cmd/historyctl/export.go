package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/models"
)

var csvHeader = []string{
	"row_id", "ingestion_iso", "box_index",
	"journey_id", "line", "direction", "line_type", "vehicle_type", "realtime",
	"start_station", "start_station_key", "end_station", "end_station_key",
	"start_timestamp", "end_timestamp", "delay_minutes",
	"is_first", "is_last",
}

func newExportCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export flattened segment rows as CSV",
		Long: `Export every flattened segment row as CSV, in time order. With --final-only,
export only the final segment of each journey.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			finalOnly, _ := cmd.Flags().GetBool("final-only")

			svc, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			var rows []models.FlatRow
			if finalOnly {
				rows, err = finalRows(cmd, svc)
			} else {
				rows, err = allRows(cmd, svc)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}

			if err := writeCSV(w, rows); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
			if output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows to %s\n", len(rows), output)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "-", "Output file path, - for stdout")
	cmd.Flags().Bool("final-only", false, "Export only the final segment of each journey")
	return cmd
}

// allRows pages through the listing at its maximum page size
func allRows(cmd *cobra.Command, svc *history.Service) ([]models.FlatRow, error) {
	var rows []models.FlatRow
	limit := history.MaxListLimit
	for offset := 0; ; offset += limit {
		off := offset
		page, err := svc.ListSegments(cmd.Context(), history.ListParams{Limit: &limit, Offset: &off})
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Journeys...)
		if !page.HasMore {
			return rows, nil
		}
	}
}

func finalRows(cmd *cobra.Command, svc *history.Service) ([]models.FlatRow, error) {
	finals, err := svc.FinalSegments(cmd.Context())
	if err != nil {
		return nil, err
	}
	rows := make([]models.FlatRow, 0, len(finals))
	for _, r := range finals {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowID < rows[j].RowID })
	return rows, nil
}

func writeCSV(w io.Writer, rows []models.FlatRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.RowID, 10), str(r.IngestionISO), integer(r.BoxIndex),
			str(r.JourneyID), str(r.Line), str(r.Direction), str(r.LineType), str(r.VehicleType), boolean(r.Realtime),
			str(r.StartStation), str(r.StartStationKey), str(r.EndStation), str(r.EndStationKey),
			int64str(r.StartTimestamp), int64str(r.EndTimestamp), integer(r.DelayMinutes),
			boolean(r.IsFirst), boolean(r.IsLast),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// null columns export as empty cells

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func integer(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func int64str(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

func boolean(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
