package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Defaults:   DefaultDefaults(),
		Queue:      DefaultQueueConfig(),
		RateLimit:  DefaultRateLimiterConfig(),
		SchemaPack: DefaultSchemaPackConfig(),
	}
}

func TestValidateAllAcceptsDefaults(t *testing.T) {
	require.NoError(t, NewValidator(validConfig()).ValidateAll())
}

func TestValidateThresholdsOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.ConfidenceThresholdAuto = 1.5

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateThresholdsOutOfOrder(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.ConfidenceThresholdMin = 0.9
	cfg.Defaults.ConfidenceThresholdReview = 0.5

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateQueueRejectsNonPositiveBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.BatchSize = 0

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue")
}

func TestValidateRateLimitRejectsZeroInterval(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Interval = 0 * time.Second

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestValidateLinkingStrategyRejectsUnknown(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.EntityLinkingStrategy = LinkingStrategy("nonsense")

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity_linking_strategy")
}
