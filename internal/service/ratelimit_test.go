package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tightConfig() RateLimitConfig {
	return RateLimitConfig{
		PerIdentityPerWindow: 2,
		PerIPPerWindow:       2,
		GlobalPerWindow:      2,
		Window:               time.Second,
		PerNullifierMinGap:   50 * time.Millisecond,
	}
}

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	l := NewRateLimiter(tightConfig())
	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-1"))
}

func TestRateLimiterDeniesAfterPerIdentityBudgetExhausted(t *testing.T) {
	cfg := tightConfig()
	cfg.PerIdentityPerWindow = 1
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-1"))
	assert.False(t, l.Allow("alice", "2.2.2.2", "nf-2"))
}

func TestRateLimiterDeniesAfterPerIPBudgetExhausted(t *testing.T) {
	cfg := tightConfig()
	cfg.PerIPPerWindow = 1
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-1"))
	assert.False(t, l.Allow("bob", "1.1.1.1", "nf-2"))
}

func TestRateLimiterDeniesAfterGlobalBudgetExhausted(t *testing.T) {
	cfg := tightConfig()
	cfg.GlobalPerWindow = 1
	cfg.PerIdentityPerWindow = 100
	cfg.PerIPPerWindow = 100
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-1"))
	assert.False(t, l.Allow("bob", "2.2.2.2", "nf-2"))
}

func TestRateLimiterDifferentIdentitiesHaveIndependentBuckets(t *testing.T) {
	cfg := tightConfig()
	cfg.PerIdentityPerWindow = 1
	cfg.GlobalPerWindow = 100
	cfg.PerIPPerWindow = 100
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-1"))
	assert.True(t, l.Allow("bob", "1.1.1.2", "nf-2"))
}

func TestRateLimiterDeniesResubmissionWithinNullifierGap(t *testing.T) {
	cfg := tightConfig()
	cfg.GlobalPerWindow = 100
	cfg.PerIdentityPerWindow = 100
	cfg.PerIPPerWindow = 100
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-shared"))
	assert.False(t, l.Allow("alice", "1.1.1.1", "nf-shared"))
}

func TestRateLimiterAllowsResubmissionAfterNullifierGapElapses(t *testing.T) {
	cfg := tightConfig()
	cfg.GlobalPerWindow = 100
	cfg.PerIdentityPerWindow = 100
	cfg.PerIPPerWindow = 100
	l := NewRateLimiter(cfg)

	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-shared"))
	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow("alice", "1.1.1.1", "nf-shared"))
}

func TestDefaultRateLimitConfigIsPositive(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.Greater(t, cfg.PerIdentityPerWindow, 0)
	assert.Greater(t, cfg.PerIPPerWindow, 0)
	assert.Greater(t, cfg.GlobalPerWindow, 0)
	assert.Greater(t, cfg.Window, time.Duration(0))
	assert.Greater(t, cfg.PerNullifierMinGap, time.Duration(0))
}
