package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tarsy-labs/extrakt/pkg/config"
)

func TestEstimateTokens(t *testing.T) {
	// (100+50)/4 = 37.5, *1.3 = 48.75, ceil = 49
	assert.Equal(t, int64(49), EstimateTokens(100, 50))
	assert.Equal(t, int64(0), EstimateTokens(0, 0))
}

func TestWaitForCapacityGrantsWithinBudget(t *testing.T) {
	lim := New(&config.RateLimiterConfig{TokensPerInterval: 1000, Interval: time.Minute})
	ok := lim.WaitForCapacity(context.Background(), 10, time.Second)
	assert.True(t, ok)
}

func TestWaitForCapacityRefusesWhenExhausted(t *testing.T) {
	lim := New(&config.RateLimiterConfig{TokensPerInterval: 10, Interval: time.Hour})
	ok := lim.WaitForCapacity(context.Background(), 5, 50*time.Millisecond)
	assert.True(t, ok)

	// Bucket now has ~5 tokens left and refills extremely slowly (10/hour);
	// a second large request within the short timeout must be refused.
	ok = lim.WaitForCapacity(context.Background(), 100, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestReportActualUsageAdjustsCorrection(t *testing.T) {
	lim := New(&config.RateLimiterConfig{TokensPerInterval: 1000, Interval: time.Minute})
	lim.ReportActualUsage(100, 150)
	status := lim.GetStatus()
	assert.Equal(t, int64(1000), status.TokensPerInterval)
}
