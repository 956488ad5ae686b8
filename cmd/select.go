package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"peerreview/kgraph/internal/selection"
)

var selectKDE bool

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Label rating-consistent papers as good, borderline or bad",
	Long: "Reads <root>/<conf>/<year>/papers/<conf><year>_papers_avg_rating.csv for every configured\n" +
		"conference year, keeps papers whose std_rating is under the data set's threshold and labels\n" +
		"them by average_rating quantiles. Results go to *_consistent_labeled.csv beside each input.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scfg := cfg.Selection
		if cmd.Flags().Changed("kde") {
			scfg.UseKDE = selectKDE
		}
		s := selection.NewSelector(scfg, logger)

		failed := 0
		for _, conf := range cfg.Pipeline.Conferences {
			for _, year := range conf.Years {
				path := s.InputPath(conf.Name, year)
				res, err := s.Process(path, selection.Dataset(conf.Name, year))
				switch {
				case errors.Is(err, fs.ErrNotExist):
					logger.Warn("File not found", zap.String("path", path))
				case err != nil:
					logger.Error("Selection failed", zap.String("path", path), zap.Error(err))
					failed++
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%-35s (std <= %.3f): %s\n",
						res.Dataset, res.Threshold, formatCounts(res.Counts))
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d data sets failed", failed)
		}
		return nil
	},
}

func init() {
	selectCmd.Flags().BoolVar(&selectKDE, "kde", false, "Derive std thresholds from the second KDE valley instead of selection.thresholds")
	rootCmd.AddCommand(selectCmd)
}

func formatCounts(counts map[string]int) string {
	s := ""
	for i, label := range selection.LabelOrder {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %d", label, counts[label])
	}
	return s
}
