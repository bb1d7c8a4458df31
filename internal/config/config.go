// Package config loads fimine profiles: YAML files holding default mining,
// input, output and logging settings. Environment variables prefixed with
// FIMINE_ override file values, e.g. FIMINE_MINING_SUPPORT=-5.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a complete fimine profile.
type Config struct {
	Mining  MiningConfig  `mapstructure:"mining"`
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MiningConfig struct {
	Algorithm string  `mapstructure:"algorithm"`
	Variant   string  `mapstructure:"variant"`
	Target    string  `mapstructure:"target"`
	Support   float64 `mapstructure:"support"`
	MinSize   int     `mapstructure:"zmin"`
	MaxSize   int     `mapstructure:"zmax"`

	Eval      string  `mapstructure:"eval"`
	Agg       string  `mapstructure:"agg"`
	Threshold float64 `mapstructure:"threshold"`
	InvBxs    bool    `mapstructure:"invbxs"`
	MaxExt    int     `mapstructure:"max_ext"`
	Border    string  `mapstructure:"border"`

	PSFSurrogates int     `mapstructure:"psf_surrogates"`
	PSFAlpha      float64 `mapstructure:"psf_alpha"`
	Seed          uint64  `mapstructure:"seed"`

	Confidence float64 `mapstructure:"confidence"`
	Heads      string  `mapstructure:"heads"`

	Workers       int           `mapstructure:"workers"`
	MaxResults    int           `mapstructure:"max_results"`
	MaxCandidates int           `mapstructure:"max_candidates"`
	Timeout       time.Duration `mapstructure:"timeout"`
	BestEffort    bool          `mapstructure:"best_effort"`
}

type InputConfig struct {
	Separators string `mapstructure:"separators"`
	Weights    bool   `mapstructure:"weights"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	Report string `mapstructure:"report"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir returns the fimine config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/fimine if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "fimine"), nil
}

// Load reads the profile at path. An empty path looks for config.yaml in
// Dir and falls back to the defaults when there is none.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FIMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		if dir, err := Dir(); err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Store.Path == "" {
		if dir, err := Dir(); err == nil {
			cfg.Store.Path = filepath.Join(dir, "transactions.db")
		}
	}
	return &cfg, nil
}

// Default returns the built-in profile.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mining.algorithm", "eclat")
	v.SetDefault("mining.variant", "")
	v.SetDefault("mining.target", "frequent")
	v.SetDefault("mining.support", -10.0)
	v.SetDefault("mining.zmin", 1)
	v.SetDefault("mining.zmax", 0)
	v.SetDefault("mining.eval", "none")
	v.SetDefault("mining.agg", "none")
	v.SetDefault("mining.threshold", 0.0)
	v.SetDefault("mining.invbxs", false)
	v.SetDefault("mining.max_ext", 0)
	v.SetDefault("mining.border", "")
	v.SetDefault("mining.psf_surrogates", 0)
	v.SetDefault("mining.psf_alpha", 0.01)
	v.SetDefault("mining.seed", 1)
	v.SetDefault("mining.confidence", 0.8)
	v.SetDefault("mining.heads", "single")
	v.SetDefault("mining.workers", 1)
	v.SetDefault("mining.max_results", 0)
	v.SetDefault("mining.max_candidates", 0)
	v.SetDefault("mining.timeout", "0s")
	v.SetDefault("mining.best_effort", false)

	v.SetDefault("input.separators", " \t,")
	v.SetDefault("input.weights", false)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.report", "")

	v.SetDefault("store.path", "")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
}

// Validate checks the values Load cannot type-check. Mining parameters are
// validated in full when a run starts.
func (c *Config) Validate() error {
	if c.Mining.Support == 0 {
		return fmt.Errorf("mining.support must be non-zero")
	}
	if c.Mining.Support < -100 {
		return fmt.Errorf("mining.support percentage must not exceed 100")
	}
	if c.Mining.MinSize < 0 || c.Mining.MaxSize < 0 {
		return fmt.Errorf("mining.zmin and mining.zmax must not be negative")
	}
	if c.Mining.Confidence < 0 || c.Mining.Confidence > 1 {
		return fmt.Errorf("mining.confidence must be between 0.0 and 1.0")
	}
	if c.Mining.Workers < 1 {
		return fmt.Errorf("mining.workers must be at least 1")
	}
	if c.Mining.MaxExt < 0 {
		return fmt.Errorf("mining.max_ext must not be negative")
	}
	if c.Mining.PSFSurrogates < 0 {
		return fmt.Errorf("mining.psf_surrogates must not be negative")
	}
	if c.Mining.PSFAlpha <= 0 || c.Mining.PSFAlpha > 1 {
		return fmt.Errorf("mining.psf_alpha must be in (0, 1]")
	}
	if c.Mining.Timeout < 0 {
		return fmt.Errorf("mining.timeout must not be negative")
	}

	validFormats := map[string]bool{"text": true, "table": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output.format must be one of: text, table")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, disabled")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}
	return nil
}
