package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateThresholds(); err != nil {
		return fmt.Errorf("confidence threshold validation failed: %w", err)
	}
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateRateLimit(); err != nil {
		return fmt.Errorf("rate limit validation failed: %w", err)
	}
	if err := v.validateLinkingStrategy(); err != nil {
		return fmt.Errorf("entity linking strategy validation failed: %w", err)
	}
	return nil
}

// validateThresholds enforces min <= review <= auto, each in [0,1].
func (v *Validator) validateThresholds() error {
	d := v.cfg.Defaults
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"confidence_threshold_min", d.ConfidenceThresholdMin},
		{"confidence_threshold_review", d.ConfidenceThresholdReview},
		{"confidence_threshold_auto", d.ConfidenceThresholdAuto},
	} {
		if t.value < 0 || t.value > 1 {
			return NewValidationError("defaults", "thresholds", t.name,
				fmt.Errorf("%w: must be in [0,1], got %v", ErrInvalidValue, t.value))
		}
	}
	if d.ConfidenceThresholdMin > d.ConfidenceThresholdReview {
		return NewValidationError("defaults", "thresholds", "confidence_threshold_min",
			fmt.Errorf("%w: min must be <= review", ErrInvalidValue))
	}
	if d.ConfidenceThresholdReview > d.ConfidenceThresholdAuto {
		return NewValidationError("defaults", "thresholds", "confidence_threshold_review",
			fmt.Errorf("%w: review must be <= auto", ErrInvalidValue))
	}
	if d.MaxRetries < 0 {
		return NewValidationError("defaults", "thresholds", "max_retries",
			fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q.BatchSize <= 0 {
		return NewValidationError("queue", "queue", "batch_size",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if q.PollInterval <= 0 {
		return NewValidationError("queue", "queue", "poll_interval",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if q.OrphanThreshold <= 0 {
		return NewValidationError("queue", "queue", "orphan_threshold",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRateLimit() error {
	rl := v.cfg.RateLimit
	if rl.TokensPerInterval <= 0 {
		return NewValidationError("rate_limit", "rate_limit", "tokens_per_interval",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if rl.Interval <= 0 {
		return NewValidationError("rate_limit", "rate_limit", "interval",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateLinkingStrategy() error {
	switch v.cfg.Defaults.EntityLinkingStrategy {
	case LinkingKeyMatch, LinkingVectorSimilarity, LinkingAlwaysNew:
		return nil
	default:
		return NewValidationError("defaults", "defaults", "entity_linking_strategy",
			fmt.Errorf("%w: %q", ErrInvalidValue, v.cfg.Defaults.EntityLinkingStrategy))
	}
}
