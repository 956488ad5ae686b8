package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"peerreview/kgraph/internal/db"
	"peerreview/kgraph/internal/export"
	"peerreview/kgraph/internal/pipeline"
)

var (
	runsConference string
	runsYear       int
	runsCategory   string
	runsJSON       bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show a stored metrics run and its rows",
	Long: "Prints the run header and its metric rows as CSV. Without a run ID, shows the latest\n" +
		"finished run for --conference, --year and --category.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := RequireDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		run, err := findRun(d, args)
		if err != nil {
			return err
		}
		rows, err := d.MetricsForRun(run.ID)
		if err != nil {
			return fmt.Errorf("loading metrics: %w", err)
		}

		if runsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Run  *db.Run        `json:"run"`
				Rows []db.MetricRow `json:"rows"`
			}{run, rows})
		}
		printRun(cmd.OutOrStdout(), run)
		return export.Write(cmd.OutOrStdout(), exportRows(rows))
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsConference, "conference", "", "Conference of the latest run")
	runsCmd.Flags().IntVar(&runsYear, "year", 0, "Year of the latest run")
	runsCmd.Flags().StringVar(&runsCategory, "category", "", "Category of the latest run")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(runsCmd)
}

func findRun(d *db.DB, args []string) (*db.Run, error) {
	if len(args) == 1 {
		return d.GetRun(args[0])
	}
	if runsConference == "" || runsYear == 0 || runsCategory == "" {
		return nil, errors.New("give a run ID or all of --conference, --year and --category")
	}
	return d.LatestRun(runsConference, runsYear, runsCategory)
}

func exportRows(rows []db.MetricRow) []export.Row {
	out := make([]export.Row, len(rows))
	for i, r := range rows {
		out[i] = export.Row{
			Key: pipeline.RecordKey{
				PaperID:   r.PaperID,
				Section:   r.Section,
				Source:    r.Source,
				LineIndex: r.LineIndex,
			},
			Metrics: r.Metrics,
		}
	}
	return out
}

func printRun(w io.Writer, r *db.Run) {
	status := "running"
	if r.FinishedAt != nil {
		status = "finished " + time.UnixMilli(*r.FinishedAt).Format(time.RFC3339)
	}
	fmt.Fprintf(w, "# run %s  %s %d %s  seed=%d  metrics_version=%d  graphs=%d  started %s  %s\n",
		r.ID, r.Conference, r.Year, r.Category, r.Seed, r.MetricsVersion, r.GraphCount,
		time.UnixMilli(r.StartedAt).Format(time.RFC3339), status)
}
