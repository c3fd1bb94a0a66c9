package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ExtraktYAMLConfig represents the complete extrakt.yaml file structure.
type ExtraktYAMLConfig struct {
	Defaults   *Defaults          `yaml:"defaults"`
	Queue      *QueueConfig       `yaml:"queue"`
	RateLimit  *RateLimiterConfig `yaml:"rate_limit"`
	SchemaPack *SchemaPackConfig  `yaml:"schema_pack"`
}

// Initialize loads, merges, and validates configuration from configDir.
// This is the primary entry point: load → merge → defaults → validate.
//
// Steps performed:
//  1. Load extrakt.yaml (environment variables expanded first)
//  2. Merge built-in defaults under any values the file left unset
//  3. Validate the merged configuration
//  4. Return Config ready for use
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"confidence_min", cfg.Defaults.ConfidenceThresholdMin,
		"confidence_review", cfg.Defaults.ConfidenceThresholdReview,
		"confidence_auto", cfg.Defaults.ConfidenceThresholdAuto,
		"linking_strategy", cfg.Defaults.EntityLinkingStrategy,
		"queue_batch_size", cfg.Queue.BatchSize,
	)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	var file ExtraktYAMLConfig
	path := filepath.Join(configDir, "extrakt.yaml")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	case os.IsNotExist(err):
		slog.Warn("No extrakt.yaml found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	defaults := DefaultDefaults()
	if file.Defaults != nil {
		if err := mergo.Merge(defaults, file.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge defaults: %w", err)
		}
	}

	queue := DefaultQueueConfig()
	if file.Queue != nil {
		if err := mergo.Merge(queue, file.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	rateLimit := DefaultRateLimiterConfig()
	if file.RateLimit != nil {
		if err := mergo.Merge(rateLimit, file.RateLimit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge rate limit config: %w", err)
		}
	}

	schemaPack := DefaultSchemaPackConfig()
	if file.SchemaPack != nil {
		if err := mergo.Merge(schemaPack, file.SchemaPack, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge schema pack config: %w", err)
		}
	}

	return &Config{
		configDir:  configDir,
		Defaults:   defaults,
		Queue:      queue,
		RateLimit:  rateLimit,
		SchemaPack: schemaPack,
	}, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}
