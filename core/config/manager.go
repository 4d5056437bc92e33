package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/adalundhe/vmfcluster/core/cluster"
	"github.com/adalundhe/vmfcluster/core/embedding"
	"gopkg.in/yaml.v3"
)

const (
	ProjectFileName = "vmfcluster.yaml"
	envPrefix       = "VMFCLUSTER_"
)

type Manager struct {
	current atomic.Pointer[Config]
	sources Sources
}

// Sources lists the configuration files read by Load, lowest precedence
// first. Missing user and project files are skipped; a missing File is an
// error.
type Sources struct {
	UserFile    string
	ProjectFile string
	File        string
}

type Config struct {
	Clustering ClusteringConfig `yaml:"clustering"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ClusteringConfig struct {
	K                int     `yaml:"k"`
	MaxIterations    int     `yaml:"max_iterations"`
	Tolerance        float64 `yaml:"tolerance"`
	Restarts         int     `yaml:"restarts"`
	LikelihoodSample int     `yaml:"likelihood_sample"`
	CapRemainder     bool    `yaml:"cap_remainder"`
	Workers          int     `yaml:"workers"`
	Seed             uint64  `yaml:"seed"`
}

type InputConfig struct {
	MaxWords  int  `yaml:"max_words"`
	Normalize bool `yaml:"normalize"`
}

type OutputConfig struct {
	Format            string `yaml:"format"`
	MembersPerCluster int    `yaml:"members_per_cluster"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultSources resolves the user file under os.UserConfigDir and the
// project file in the working directory. explicit may be empty.
func DefaultSources(explicit string) Sources {
	s := Sources{ProjectFile: ProjectFileName, File: explicit}
	if dir, err := os.UserConfigDir(); err == nil {
		s.UserFile = filepath.Join(dir, "vmfcluster", "config.yaml")
	}
	return s
}

func NewManager(sources Sources) *Manager {
	m := &Manager{sources: sources}
	m.current.Store(DefaultConfig())
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Clustering: ClusteringConfig{
			K:                10,
			MaxIterations:    cluster.DefaultMaxIterations,
			Tolerance:        cluster.DefaultTolerance,
			Restarts:         1,
			LikelihoodSample: cluster.DefaultLikelihoodSample,
		},
		Input: InputConfig{
			Normalize: true,
		},
		Output: OutputConfig{
			Format:            "text",
			MembersPerCluster: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load layers defaults, the user file, the project file, the explicit
// file and VMFCLUSTER_* variables, then validates the result.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := loadYAMLFile(m.sources.UserFile, cfg, false); err != nil {
		return fmt.Errorf("user config: %w", err)
	}
	if err := loadYAMLFile(m.sources.ProjectFile, cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}
	if err := loadYAMLFile(m.sources.File, cfg, true); err != nil {
		return fmt.Errorf("config %s: %w", m.sources.File, err)
	}

	if err := applyEnvironment(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.current.Store(cfg)
	return nil
}

func loadYAMLFile(path string, cfg *Config, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvironment overrides cfg from VMFCLUSTER_* variables. A variable
// that does not parse is an error naming it.
func applyEnvironment(cfg *Config) error {
	c := &cfg.Clustering
	ints := map[string]*int{
		"K":                 &c.K,
		"MAX_ITERATIONS":    &c.MaxIterations,
		"RESTARTS":          &c.Restarts,
		"LIKELIHOOD_SAMPLE": &c.LikelihoodSample,
		"WORKERS":           &c.Workers,
		"MAX_WORDS":         &cfg.Input.MaxWords,
	}
	for name, dst := range ints {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := parseInt(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv(envPrefix + "TOLERANCE"); v != "" {
		f, err := parseFloat(v)
		if err != nil {
			return fmt.Errorf("%sTOLERANCE: %w", envPrefix, err)
		}
		c.Tolerance = f
	}
	if v := os.Getenv(envPrefix + "SEED"); v != "" {
		n, err := parseUint(v)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", envPrefix, err)
		}
		c.Seed = n
	}
	if v := os.Getenv(envPrefix + "CAP_REMAINDER"); v != "" {
		c.CapRemainder = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "NORMALIZE"); v != "" {
		cfg.Input.Normalize = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	return nil
}

// Validate reports the first setting outside its allowed range.
func (c *Config) Validate() error {
	switch {
	case c.Clustering.K < 1:
		return fmt.Errorf("clustering.k must be at least 1, got %d", c.Clustering.K)
	case c.Clustering.MaxIterations < 1:
		return fmt.Errorf("clustering.max_iterations must be at least 1, got %d", c.Clustering.MaxIterations)
	case !(c.Clustering.Tolerance > 0):
		return fmt.Errorf("clustering.tolerance must be positive, got %v", c.Clustering.Tolerance)
	case c.Clustering.Restarts < 1:
		return fmt.Errorf("clustering.restarts must be at least 1, got %d", c.Clustering.Restarts)
	case c.Input.MaxWords < 0:
		return fmt.Errorf("input.max_words must not be negative, got %d", c.Input.MaxWords)
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output.format must be text or json, got %q", c.Output.Format)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format must be auto, text or json, got %q", c.Logging.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// ClusterConfig converts the clustering section into an engine config.
func (c *Config) ClusterConfig(logger *slog.Logger) cluster.Config {
	cc := cluster.DefaultConfig(c.Clustering.K)
	cc.MaxIterations = c.Clustering.MaxIterations
	cc.Tolerance = c.Clustering.Tolerance
	cc.Restarts = c.Clustering.Restarts
	cc.LikelihoodSample = c.Clustering.LikelihoodSample
	cc.CapRemainder = c.Clustering.CapRemainder
	cc.Workers = c.Clustering.Workers
	cc.Seed = c.Clustering.Seed
	cc.Logger = logger
	return cc
}

// LoaderOptions converts the input section into word-vector loader options.
func (c *Config) LoaderOptions(logger *slog.Logger) embedding.Options {
	return embedding.Options{
		MaxWords:  c.Input.MaxWords,
		Normalize: c.Input.Normalize,
		Logger:    logger,
	}
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseUint(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
