package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyIP-Intelligence/internal/application/search"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

var (
	fpFile        string
	fpThreshold   float64
	fpSorted      bool
	fpLimit       int
	fpQueryBits   string
	fpOutputCSV   string
)

// NewFingerprintCmd builds the `keyip fingerprint` command group around the
// process-wide search.Default() engine: load, search, search-file, and stats.
func NewFingerprintCmd(logger logging.Logger) *cobra.Command {
	fpCmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Load and query an in-memory binary fingerprint population",
		Long:  "Load a population of binary fingerprints and run Tanimoto similarity searches against it via the in-memory cardinality-grid engine.",
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a fingerprint population from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintLoad(cmd.Context(), logger)
		},
	}
	loadCmd.Flags().StringVar(&fpFile, "file", "", "path to the fingerprint population file (required)")
	loadCmd.MarkFlagRequired("file")

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Run a similarity search against the loaded population",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintSearch(cmd.Context(), logger)
		},
	}
	searchCmd.Flags().StringVar(&fpQueryBits, "bits", "", "query bit string (required)")
	searchCmd.Flags().Float64Var(&fpThreshold, "threshold", 0.7, "minimum Tanimoto coefficient")
	searchCmd.Flags().BoolVar(&fpSorted, "sorted", false, "sort results by descending score")
	searchCmd.Flags().IntVar(&fpLimit, "limit", 0, "maximum number of results (0 = unbounded)")
	searchCmd.MarkFlagRequired("bits")

	searchFileCmd := &cobra.Command{
		Use:   "search-file",
		Short: "Run similarity searches for every query in a file, streaming CSV results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintSearchFile(cmd.Context(), logger)
		},
	}
	searchFileCmd.Flags().StringVar(&fpFile, "file", "", "path to the query file (required)")
	searchFileCmd.Flags().Float64Var(&fpThreshold, "threshold", 0.7, "minimum Tanimoto coefficient")
	searchFileCmd.Flags().StringVar(&fpOutputCSV, "output", "", "CSV output path (default: stdout)")
	searchFileCmd.MarkFlagRequired("file")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the loaded population's size and bound-check statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintStats(cmd.Context())
		},
	}

	fpCmd.AddCommand(loadCmd, searchCmd, searchFileCmd, statsCmd)
	return fpCmd
}

func runFingerprintLoad(ctx context.Context, logger logging.Logger) error {
	loader := search.FileLoader{Path: fpFile}
	if err := search.Load(ctx, loader, 0); err != nil {
		return err
	}
	stats, err := search.Statistics()
	if err != nil {
		return err
	}
	logger.Info("fingerprint population loaded", logging.Int("population_size", stats.PopulationSize))
	fmt.Printf("loaded %d fingerprints\n", stats.PopulationSize)
	return nil
}

func runFingerprintSearch(ctx context.Context, logger logging.Logger) error {
	results, err := search.Search(ctx, "cli-query", fpQueryBits, search.SearchOptions{
		Threshold: fpThreshold,
		Sorted:    fpSorted,
		Limit:     fpLimit,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%.7f\n", r.ID, r.Score)
	}
	logger.Info("fingerprint search completed", logging.Int("result_count", len(results)))
	return nil
}

func runFingerprintSearchFile(ctx context.Context, logger logging.Logger) error {
	queryLoader := search.FileLoader{Path: fpFile}
	queries, err := queryLoader.Load(ctx, 0)
	if err != nil {
		return err
	}

	out := os.Stdout
	if fpOutputCSV != "" {
		f, err := os.Create(fpOutputCSV)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintln(out, "query,fingerprint,tanimoto")
	for _, q := range queries {
		results, err := search.Search(ctx, q.ID, q.BitString, search.SearchOptions{Threshold: fpThreshold, Sorted: true})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s,%s,%.7f\n", q.ID, r.ID, r.Score)
		}
	}
	logger.Info("fingerprint batch search completed", logging.Int("query_count", len(queries)))
	return nil
}

func runFingerprintStats(ctx context.Context) error {
	stats, err := search.Statistics()
	if err != nil {
		return err
	}
	fmt.Printf("population size: %d\n", stats.PopulationSize)
	for i, label := range stats.BucketLabels {
		fmt.Printf("%-10s count=%d (%.2f%%)\n", label, stats.BucketCounts[i], stats.BucketPercentage[i])
	}
	return nil
}
