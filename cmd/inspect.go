package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/adalundhe/vmfcluster/core/config"
	"github.com/adalundhe/vmfcluster/core/dictionary"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	inspectJSON    bool
	inspectMembers int
	inspectWords   []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <dictionary>",
	Short: "Print a saved cluster dictionary",
	Long: `Print the clusters of a dictionary written by fit, or look up the
cluster of individual words.

Examples:
  vmfcluster inspect en.yaml
  vmfcluster inspect en.yaml --members 20
  vmfcluster inspect en.yaml --word king --word queen
  vmfcluster inspect en.yaml --json | jq '.clusters[0]'`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	inspectCmd.Flags().IntVarP(&inspectMembers, "members", "m", 0, "Member words shown per cluster, 0 for all (default from config)")
	inspectCmd.Flags().StringArrayVarP(&inspectWords, "word", "w", nil, "Show only the clusters of these words")
}

type clusterView struct {
	ID            int      `json:"id"`
	Size          int      `json:"size"`
	Concentration float64  `json:"concentration"`
	Weight        float64  `json:"weight"`
	PrimaryWord   string   `json:"primary_word"`
	Members       []string `json:"members"`
}

type dictionaryView struct {
	RunID         string             `json:"run_id"`
	State         string             `json:"state"`
	Iterations    int                `json:"iterations"`
	LogLikelihood float64            `json:"log_likelihood"`
	Dimension     int                `json:"dimension"`
	Summary       dictionary.Summary `json:"summary"`
	Clusters      []clusterView      `json:"clusters"`
	Words         map[string]int     `json:"words,omitempty"`
}

// inspectOverrides applies the inspect flags that were set on the command
// line. --json=false selects text output over a json config setting.
func inspectOverrides(flags *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		if flags.Changed("json") {
			cfg.Output.Format = "text"
			if inspectJSON {
				cfg.Output.Format = "json"
			}
		}
		if flags.Changed("members") {
			cfg.Output.MembersPerCluster = inspectMembers
		}
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(cmd, inspectOverrides(cmd.Flags()))
	if err != nil {
		return err
	}

	dict, err := dictionary.Load(args[0])
	if err != nil {
		return err
	}

	view, err := buildView(dict, cfg.Output.MembersPerCluster, inspectWords)
	if err != nil {
		return err
	}

	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return printView(cmd.OutOrStdout(), view)
}

// buildView collects the clusters to print. With words, only their
// clusters are included, each once.
func buildView(dict *dictionary.Dictionary, members int, words []string) (*dictionaryView, error) {
	view := &dictionaryView{
		RunID:         dict.RunID.String(),
		State:         dict.State,
		Iterations:    dict.Iterations,
		LogLikelihood: dict.LogLikelihood,
		Dimension:     dict.Dimension,
		Summary:       dict.Summary(),
	}

	ids := make([]int, 0, len(dict.Records))
	if len(words) == 0 {
		for _, rec := range dict.Records {
			ids = append(ids, rec.ID)
		}
	} else {
		view.Words = make(map[string]int, len(words))
		seen := make(map[int]bool)
		for _, w := range words {
			rec, err := dict.ClusterOf(w)
			if err != nil {
				return nil, err
			}
			view.Words[w] = rec.ID
			if !seen[rec.ID] {
				seen[rec.ID] = true
				ids = append(ids, rec.ID)
			}
		}
	}

	for _, id := range ids {
		rec, err := dict.Record(id)
		if err != nil {
			return nil, err
		}
		names, err := dict.MembersOf(id, members)
		if err != nil {
			return nil, err
		}
		view.Clusters = append(view.Clusters, clusterView{
			ID:            rec.ID,
			Size:          rec.Size(),
			Concentration: rec.Concentration,
			Weight:        rec.Weight,
			PrimaryWord:   rec.PrimaryWord,
			Members:       names,
		})
	}
	return view, nil
}

func printView(w io.Writer, view *dictionaryView) error {
	fmt.Fprintf(w, "Dictionary %s\n", view.RunID)
	fmt.Fprintf(w, "  state: %s, iterations: %d, log-likelihood: %.4f\n",
		view.State, view.Iterations, view.LogLikelihood)
	fmt.Fprintf(w, "  %d words, %d clusters, dimension %d\n\n",
		view.Summary.Words, view.Summary.Clusters, view.Dimension)

	for _, word := range slices.Sorted(maps.Keys(view.Words)) {
		fmt.Fprintf(w, "%s -> cluster %d\n", word, view.Words[word])
	}
	if len(view.Words) > 0 {
		fmt.Fprintln(w)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIZE\tKAPPA\tWEIGHT\tPRIMARY\tMEMBERS")
	for _, c := range view.Clusters {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.4f\t%s\t%s\n",
			c.ID, c.Size, c.Concentration, c.Weight, c.PrimaryWord, strings.Join(c.Members, " "))
	}
	return tw.Flush()
}
