// Package cmd provides the vmfcluster command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/adalundhe/vmfcluster/core/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "vmfcluster",
	Short: "Balanced spherical clustering of word embeddings",
	Long: `vmfcluster partitions unit-norm embedding vectors into equally sized
clusters with a balanced von Mises-Fisher mixture model and writes the
result as a cluster dictionary.

Settings are read from ~/.config/vmfcluster/config.yaml, ./vmfcluster.yaml,
the file given with --config and VMFCLUSTER_* environment variables, in
that order. Command line flags take precedence over all of them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (auto, text, json)")
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig layers the config files and environment, then applies the
// flags the user set explicitly. Flags left at their defaults do not
// override anything, while explicit zero or false values do.
func loadConfig(flags *pflag.FlagSet, override func(*config.Config)) (*config.Config, error) {
	m := config.NewManager(config.DefaultSources(configPath))
	if err := m.Load(); err != nil {
		return nil, err
	}
	cfg := *m.Get()

	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if override != nil {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newLogger builds the process logger. The auto format picks a text
// handler for terminals and JSON otherwise.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Logging.Format
	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// setup loads configuration and installs the logger as the process default.
func setup(cmd *cobra.Command, override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd.Flags(), override)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
