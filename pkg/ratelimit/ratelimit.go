// Package ratelimit implements the token-budget admission policy that
// protects the LLM provider from bursts across concurrently processed jobs.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tarsy-labs/extrakt/pkg/config"
)

// EstimateTokens approximates the tokens a call will consume from
// character counts, using a 4-characters-per-token heuristic with a 30%
// buffer for the response: ceil((docLen+promptLen)/4 * 1.3).
func EstimateTokens(docLen, promptLen int) int64 {
	chars := float64(docLen + promptLen)
	return int64(math.Ceil(chars / 4 * 1.3))
}

// Status is a snapshot of the limiter's remaining budget and recent burn rate.
type Status struct {
	TokensPerInterval int64
	Interval          time.Duration
	AvailableTokens   float64
	RecentBurnRate    float64 // tokens/sec, smoothed
}

// Limiter is a process-local token-budget admission control. It wraps
// golang.org/x/time/rate's token bucket (configured to refill
// TokensPerInterval every Interval) and layers on usage reconciliation: a
// caller estimates tokens before a call, reserves them, then reports actual
// usage afterward so a correction factor can tighten future estimates.
type Limiter struct {
	bucket *rate.Limiter
	cfg    *config.RateLimiterConfig

	mu          sync.Mutex
	correction  float64 // multiplicative correction applied to future estimates
	burnRate    float64 // exponentially-weighted tokens/sec
	lastReportAt time.Time
}

// New constructs a Limiter from the configured budget.
func New(cfg *config.RateLimiterConfig) *Limiter {
	ratePerSec := rate.Limit(float64(cfg.TokensPerInterval) / cfg.Interval.Seconds())
	return &Limiter{
		bucket:     rate.NewLimiter(ratePerSec, int(cfg.TokensPerInterval)),
		cfg:        cfg,
		correction: 1.0,
	}
}

// WaitForCapacity blocks up to timeout for estimatedTokens of budget to
// become available. Returns false, without error, if the deadline elapses
// first — the caller treats that as a retryable rate-limited failure, not
// an error.
func (l *Limiter) WaitForCapacity(ctx context.Context, estimatedTokens int64, timeout time.Duration) bool {
	l.mu.Lock()
	adjusted := int(math.Ceil(float64(estimatedTokens) * l.correction))
	l.mu.Unlock()
	if adjusted < 1 {
		adjusted = 1
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.bucket.WaitN(waitCtx, adjusted); err != nil {
		return false
	}
	return true
}

// ReportActualUsage reconciles an estimate against observed consumption,
// adjusting the correction factor applied to future estimates via an
// exponentially-weighted update (alpha = 0.2).
func (l *Limiter) ReportActualUsage(estimated, actual int64) {
	if estimated <= 0 {
		return
	}
	const alpha = 0.2
	ratio := float64(actual) / float64(estimated)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.correction = (1-alpha)*l.correction + alpha*ratio

	now := time.Now()
	if !l.lastReportAt.IsZero() {
		elapsed := now.Sub(l.lastReportAt).Seconds()
		if elapsed > 0 {
			instantaneous := float64(actual) / elapsed
			l.burnRate = (1-alpha)*l.burnRate + alpha*instantaneous
		}
	}
	l.lastReportAt = now
}

// GetStatus returns the remaining budget and recent burn-rate metrics.
func (l *Limiter) GetStatus() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		TokensPerInterval: l.cfg.TokensPerInterval,
		Interval:          l.cfg.Interval,
		AvailableTokens:   l.bucket.Tokens(),
		RecentBurnRate:    l.burnRate,
	}
}
