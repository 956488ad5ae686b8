package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"peerreview/kgraph/internal/pipeline"
	"peerreview/kgraph/internal/similarity"
)

var (
	simConference string
	simYear       int
	simCategory   string
)

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Score review parts against paper sections with sentence embeddings",
	Long: "For every paper with mapped sections, embeds each section and each part of its human and\n" +
		"LLM reviews, and writes the sections ranked by cosine similarity per review part.\n" +
		"Existing results are kept. With a database configured, embeddings are cached in it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scfg := cfg.Similarity
		openai, err := similarity.NewOpenAIEncoder(scfg.Encoder, nil)
		if err != nil {
			return err
		}
		var enc similarity.Encoder = openai

		store, err := OpenDatabase()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			enc = similarity.NewCachedEncoder(openai, store, openai.Model(), logger)
		}

		runner := similarity.NewRunner(scfg, enc, logger)
		var total similarity.Stats
		for _, t := range filterTargets(pipeline.Targets(cfg.Pipeline), simConference, simYear, simCategory) {
			stats, err := runner.Run(cmd.Context(), t.Conference, t.Year, t.Category)
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			total.Papers += stats.Papers
			total.Written += stats.Written
			total.Skipped += stats.Skipped
		}
		fields := []zap.Field{
			zap.Int("papers", total.Papers),
			zap.Int("written", total.Written),
			zap.Int("skipped", total.Skipped),
		}
		if store != nil {
			if n, err := store.CountEmbeddings(openai.Model()); err == nil {
				fields = append(fields, zap.Int("cached_embeddings", n))
			}
		}
		logger.Info("Similarity complete", fields...)
		return nil
	},
}

func init() {
	similarityCmd.Flags().StringVar(&simConference, "conference", "", "Only process this conference")
	similarityCmd.Flags().IntVar(&simYear, "year", 0, "Only process this year")
	similarityCmd.Flags().StringVar(&simCategory, "category", "", "Only process this category")
	rootCmd.AddCommand(similarityCmd)
}
