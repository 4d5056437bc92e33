package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/adalundhe/vmfcluster/core/cluster"
	"github.com/adalundhe/vmfcluster/core/config"
	"github.com/adalundhe/vmfcluster/core/dictionary"
	"github.com/adalundhe/vmfcluster/core/embedding"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultOutputPath is where fit writes the dictionary without --output.
const DefaultOutputPath = "dictionary.yaml"

var (
	fitK             int
	fitOutput        string
	fitMaxIterations int
	fitTolerance     float64
	fitRestarts      int
	fitSeed          uint64
	fitWorkers       int
	fitMaxWords      int
	fitCapRemainder  bool
)

var fitCmd = &cobra.Command{
	Use:   "fit <vectors>",
	Short: "Cluster a word vector file into a dictionary",
	Long: `Fit a balanced von Mises-Fisher mixture to the vectors in a
word2vec/fastText text file (optionally .gz or .zst compressed) and write
the resulting cluster dictionary as YAML.

Examples:
  vmfcluster fit wiki.en.vec -k 500 -o en.yaml
  vmfcluster fit vectors.txt.gz -k 64 --max-words 50000 --seed 7
  vmfcluster fit vectors.txt -k 10 --restarts 5 --cap-remainder`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

func init() {
	rootCmd.AddCommand(fitCmd)

	fitCmd.Flags().IntVarP(&fitK, "clusters", "k", 0, "Number of clusters (default from config)")
	fitCmd.Flags().StringVarP(&fitOutput, "output", "o", DefaultOutputPath, "Dictionary output path")
	fitCmd.Flags().IntVar(&fitMaxIterations, "max-iterations", 0, "EM iteration cap per restart")
	fitCmd.Flags().Float64Var(&fitTolerance, "tolerance", 0, "Log-likelihood change that counts as converged")
	fitCmd.Flags().IntVar(&fitRestarts, "restarts", 0, "Independently seeded runs; the best is kept")
	fitCmd.Flags().Uint64Var(&fitSeed, "seed", 0, "Random seed (0 = time based)")
	fitCmd.Flags().IntVar(&fitWorkers, "workers", 0, "Goroutines for parallel steps (0 = GOMAXPROCS)")
	fitCmd.Flags().IntVar(&fitMaxWords, "max-words", 0, "Read at most this many words")
	fitCmd.Flags().BoolVar(&fitCapRemainder, "cap-remainder", false, "Keep every cluster within one of the target size")
}

// fitOverrides applies the fit flags that were set on the command line.
func fitOverrides(flags *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		c := &cfg.Clustering
		if flags.Changed("clusters") {
			c.K = fitK
		}
		if flags.Changed("max-iterations") {
			c.MaxIterations = fitMaxIterations
		}
		if flags.Changed("tolerance") {
			c.Tolerance = fitTolerance
		}
		if flags.Changed("restarts") {
			c.Restarts = fitRestarts
		}
		if flags.Changed("seed") {
			c.Seed = fitSeed
		}
		if flags.Changed("workers") {
			c.Workers = fitWorkers
		}
		if flags.Changed("cap-remainder") {
			c.CapRemainder = fitCapRemainder
		}
		if flags.Changed("max-words") {
			cfg.Input.MaxWords = fitMaxWords
		}
	}
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd, fitOverrides(cmd.Flags()))
	if err != nil {
		return err
	}

	start := time.Now()
	vocab, err := embedding.Load(args[0], cfg.LoaderOptions(logger))
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	logger.Info("word vectors loaded",
		"path", args[0],
		"words", vocab.Len(),
		"dimension", vocab.Dimension(),
		"elapsed", time.Since(start),
	)

	engine, err := cluster.New(cfg.ClusterConfig(logger))
	if err != nil {
		return err
	}
	res, err := engine.Fit(cmd.Context(), vocab.Vectors)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	dict, err := dictionary.Build(res, vocab)
	if err != nil {
		return err
	}
	if err := dict.Save(fitOutput); err != nil {
		return fmt.Errorf("save dictionary: %w", err)
	}

	printFitSummary(cmd.OutOrStdout(), dict, fitOutput, time.Since(start))
	return nil
}

func printFitSummary(w io.Writer, dict *dictionary.Dictionary, path string, elapsed time.Duration) {
	s := dict.Summary()
	fmt.Fprintf(w, "Clustered %d words into %d clusters (%s after %d iterations)\n",
		s.Words, s.Clusters, dict.State, dict.Iterations)
	fmt.Fprintf(w, "  log-likelihood: %.4f\n", dict.LogLikelihood)
	fmt.Fprintf(w, "  cluster size:   %d-%d\n", s.MinSize, s.MaxSize)
	fmt.Fprintf(w, "  concentration:  mean %.2f, std %.2f\n", s.MeanConcentration, s.StdConcentration)
	fmt.Fprintf(w, "  run id:         %s\n", dict.RunID)
	fmt.Fprintf(w, "Wrote %s in %s\n", path, elapsed.Round(time.Millisecond))
}
