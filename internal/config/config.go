// Package config loads gitsage settings from defaults, an optional config
// file (~/.gitsage/config.yaml), GITSAGE_* environment variables, and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"gitsage/internal/walker"
)

// Config is the merged application configuration.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log_file"`

	MaxFileBytes int64    `mapstructure:"max_file_bytes"`
	IgnoreDirs   []string `mapstructure:"ignore_dirs"`
	IgnoreExts   []string `mapstructure:"ignore_exts"`

	MaxChunkTokens int `mapstructure:"max_chunk_tokens"`
	OverlapTokens  int `mapstructure:"overlap_tokens"`

	TopK                  int `mapstructure:"top_k"`
	RetrieveTokenBudget   int `mapstructure:"retrieve_token_budget"`
	ContextTokenBudget    int `mapstructure:"context_token_budget"`
	ReviewCallTokenBudget int `mapstructure:"review_call_token_budget"`

	EmbedBatchSize int `mapstructure:"embed_batch_size"`
	EmbedWorkers   int `mapstructure:"embed_workers"`
	EmbedCacheSize int `mapstructure:"embed_cache_size"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout"`
	MaxRetries            int `mapstructure:"max_retries"`
}

// RequestTimeout returns the per-call provider timeout.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// WalkOptions returns the file-walking limits derived from the config.
func (c Config) WalkOptions() walker.Options {
	return walker.Options{
		MaxFileBytes: c.MaxFileBytes,
		IgnoreDirs:   c.IgnoreDirs,
		IgnoreExts:   c.IgnoreExts,
	}
}

// IndexDir returns the directory holding per-repository index databases.
func (c Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// StatePath returns the location of the persisted session state.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// SetDefaults registers every recognized key with its default value.
// Called before ReadInConfig so a partial config file merges cleanly.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("debug", false)
	v.SetDefault("log_file", "")

	v.SetDefault("max_file_bytes", 100*1024)
	v.SetDefault("ignore_dirs", []string{})
	v.SetDefault("ignore_exts", []string{})

	v.SetDefault("max_chunk_tokens", 320)
	v.SetDefault("overlap_tokens", 80)

	v.SetDefault("top_k", 5)
	v.SetDefault("retrieve_token_budget", 2000)
	v.SetDefault("context_token_budget", 3000)
	v.SetDefault("review_call_token_budget", 6000)

	v.SetDefault("embed_batch_size", 32)
	v.SetDefault("embed_workers", 4)
	v.SetDefault("embed_cache_size", 4096)

	v.SetDefault("request_timeout", 120)
	v.SetDefault("max_retries", 2)
}

// Load reads the merged configuration from the given viper instance.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.OverlapTokens >= cfg.MaxChunkTokens {
		return nil, fmt.Errorf("overlap_tokens (%d) must be smaller than max_chunk_tokens (%d)",
			cfg.OverlapTokens, cfg.MaxChunkTokens)
	}
	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gitsage"
	}
	return filepath.Join(home, ".gitsage")
}
