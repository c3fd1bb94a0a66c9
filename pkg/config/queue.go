package config

import "time"

// QueueConfig controls how the JobCoordinator polls for and processes jobs.
type QueueConfig struct {
	// Enabled gates polling loop startup.
	Enabled bool `yaml:"enabled"`

	// BatchSize is the max jobs dequeued per tick.
	BatchSize int `yaml:"batch_size"`

	// PollInterval is the base tick interval.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter avoids thundering-herd polling across replicas.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// OrphanDetectionInterval is how often to scan for stale running jobs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is the staleness age at which a running job is
	// considered orphaned.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// GracefulShutdownTimeout bounds how long Stop() waits for the
	// in-flight batch.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Enabled:                 true,
		BatchSize:               5,
		PollInterval:            2 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		OrphanDetectionInterval: 1 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
		GracefulShutdownTimeout: 2 * time.Minute,
	}
}

// RateLimiterConfig controls RateLimiter token-budget admission.
type RateLimiterConfig struct {
	// TokensPerInterval is the budget replenished every Interval.
	TokensPerInterval int64 `yaml:"tokens_per_interval"`

	// Interval over which TokensPerInterval refills (e.g. 1 minute).
	Interval time.Duration `yaml:"interval"`

	// MaxWait bounds how long waitForCapacity blocks before refusing.
	MaxWait time.Duration `yaml:"max_wait"`
}

// DefaultRateLimiterConfig returns the built-in rate limiter defaults.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		TokensPerInterval: 200_000,
		Interval:          time.Minute,
		MaxWait:           30 * time.Second,
	}
}

// DefaultDefaults returns the built-in server-wide defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		ConfidenceThresholdMin:    0.4,
		ConfidenceThresholdReview: 0.5,
		ConfidenceThresholdAuto:   0.8,
		EntityLinkingStrategy:     LinkingKeyMatch,
		ExtractionMethod:          MethodFunctionCalling,
		ExtractionTimeoutSeconds:  120,
		EntitySimilarityThreshold: 0.5,
		VerificationEnabled:       false,
		EmbeddingsEnabled:         true,
		MaxRetries:                3,
	}
}

// DefaultSchemaPackConfig returns the built-in schema-pack defaults.
func DefaultSchemaPackConfig() *SchemaPackConfig {
	return &SchemaPackConfig{AutoInstallEnabled: true}
}
