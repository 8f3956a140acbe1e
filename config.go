package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds data locations and search tuning. Adjust the tuning fields to
// trade speed for solution quality.
type Config struct {
	// Members is the relation membership JSON file.
	Members string `mapstructure:"members"`
	// Values is the relation point value JSON file.
	Values string `mapstructure:"values"`
	// Characters is the character catalog JSON file; released characters form the default pool.
	Characters string `mapstructure:"characters"`
	// Workers is the number of goroutines searching child candidates when the child is unfixed.
	Workers int `mapstructure:"workers"`
	// GrandparentTopK bounds the ranked grandparents kept per parent. 0 keeps
	// enough for an exact search; 2 reproduces the original top-2 heuristic.
	GrandparentTopK int `mapstructure:"grandparent_top_k"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
}

// DefaultConfig returns the sequential, exact search configuration.
func DefaultConfig() Config {
	return Config{
		Members:    "data/succession_relation_member.json",
		Values:     "data/succession_relation.json",
		Characters: "data/characters.json",
		Workers:    1,
	}
}

// LoadConfig layers an optional config file and LINEAGE_* environment
// variables over DefaultConfig. An empty path searches for lineage.yaml in
// the working directory; a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()
	v := viper.New()
	v.SetDefault("members", def.Members)
	v.SetDefault("values", def.Values)
	v.SetDefault("characters", def.Characters)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("grandparent_top_k", def.GrandparentTopK)
	v.SetDefault("verbose", def.Verbose)

	v.SetEnvPrefix("lineage")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lineage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.GrandparentTopK < 0 {
		cfg.GrandparentTopK = 0
	}
	return cfg, nil
}
