// Package config holds the tagging engine's configuration: vocabulary and
// model locations, relevance-pool tuning, and output shaping. It follows the
// same load/save/validate shape used throughout this codebase's other
// configuration surfaces.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/photon-tag/tagging/internal/tagging"
)

// TaggingConfig configures every stage of the zero-shot tagging pipeline.
type TaggingConfig struct {
	VocabDir      string `yaml:"vocab_dir"`
	ModelDir      string `yaml:"model_dir"`
	CacheDir      string `yaml:"cache_dir"`
	SeedFile      string `yaml:"seed_file"`
	RelevancePath string `yaml:"relevance_path"`

	ProgressiveEnabled bool `yaml:"progressive_enabled"`
	SeedTargetSize     int  `yaml:"seed_target_size"`
	ChunkSize          int  `yaml:"chunk_size"`
	EncodeBatchSize    int  `yaml:"encode_batch_size"`

	MinConfidence        float64 `yaml:"min_confidence"`
	MaxTags              int     `yaml:"max_tags"`
	DeduplicateAncestors bool    `yaml:"deduplicate_ancestors"`
	ShowPaths            bool    `yaml:"show_paths"`
	PathMaxDepth         int     `yaml:"path_max_depth"`

	WarmCheckInterval  int     `yaml:"warm_check_interval"`
	PromotionThreshold float64 `yaml:"promotion_threshold"`
	ActiveDemotionDays int     `yaml:"active_demotion_days"`
	WarmDemotionChecks int     `yaml:"warm_demotion_checks"`

	CheckpointEvery int `yaml:"checkpoint_every"`
	NumWorkers      int `yaml:"num_workers"`

	LogDir string `yaml:"log_dir"`
	Debug  bool   `yaml:"debug"`
}

// Calibration constants from spec.md §4.8. Load-bearing: derived empirically
// for the paired text encoder and must not change without re-deriving them.
const (
	LogitScale = 117.33
	LogitBias  = -12.93
)

// DefaultConfig returns the engine's defaults.
func DefaultConfig() *TaggingConfig {
	return &TaggingConfig{
		VocabDir:      "vocab",
		ModelDir:      "models/text-encoder",
		CacheDir:      "cache",
		SeedFile:      "vocab/seed_terms.txt",
		RelevancePath: "cache/relevance.json",

		ProgressiveEnabled: true,
		SeedTargetSize:     2000,
		ChunkSize:          2000,
		EncodeBatchSize:    64,

		MinConfidence:        0.15,
		MaxTags:              20,
		DeduplicateAncestors: true,
		ShowPaths:            true,
		PathMaxDepth:         3,

		WarmCheckInterval:  5,
		PromotionThreshold: 0.35,
		ActiveDemotionDays: 14,
		WarmDemotionChecks: 20,

		CheckpointEvery: 500,
		NumWorkers:      runtime.NumCPU(),

		LogDir: "",
		Debug:  false,
	}
}

// Load reads YAML configuration from path, layering it over DefaultConfig.
// A missing file is not an error; defaults plus environment overrides are
// returned instead.
func Load(path string) (*TaggingConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *TaggingConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *TaggingConfig) applyEnvOverrides() {
	if v := os.Getenv("PHOTON_VOCAB_DIR"); v != "" {
		c.VocabDir = v
	}
	if v := os.Getenv("PHOTON_MODEL_DIR"); v != "" {
		c.ModelDir = v
	}
	if v := os.Getenv("PHOTON_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
}

// Validate enforces the ConfigError conditions from spec.md §7.
func (c *TaggingConfig) Validate() error {
	if c.NumWorkers < 1 {
		return &tagging.ConfigError{Reason: "num_workers must be >= 1"}
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return &tagging.ConfigError{Reason: "min_confidence must be within [0, 1]"}
	}
	if c.ChunkSize < 1 {
		return &tagging.ConfigError{Reason: "chunk_size must be >= 1"}
	}
	if c.EncodeBatchSize < 1 {
		return &tagging.ConfigError{Reason: "encode_batch_size must be >= 1"}
	}
	if c.MaxTags < 1 {
		return &tagging.ConfigError{Reason: "max_tags must be >= 1"}
	}
	if c.WarmCheckInterval < 0 {
		return &tagging.ConfigError{Reason: "warm_check_interval must be >= 0"}
	}
	if c.ActiveDemotionDays < 1 {
		return &tagging.ConfigError{Reason: "active_demotion_days must be >= 1"}
	}
	if c.WarmDemotionChecks < 1 {
		return &tagging.ConfigError{Reason: "warm_demotion_checks must be >= 1"}
	}
	if c.ModelDir != "" {
		info, err := os.Stat(c.ModelDir)
		if err == nil && !info.IsDir() {
			return &tagging.ConfigError{Reason: fmt.Sprintf("model_dir %q is not a directory", c.ModelDir)}
		}
	}
	return nil
}
