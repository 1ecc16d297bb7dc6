package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*loginRateLimiter, *stepClock) {
	clock := &stepClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := newLoginRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("admin")
		blocked, _ := rl.check("admin")
		assert.False(t, blocked, "should not block before reaching maxFailures")
	}
}

func TestRateLimiter_BlocksAfterThreshold(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("admin")
	}
	blocked, retryAfter := rl.check("admin")
	require.True(t, blocked)
	assert.Equal(t, baseLockout, retryAfter)
}

func TestRateLimiter_ExponentialBackoffIsCapped(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("admin")
	}
	_, first := rl.check("admin")
	rl.recordFailure("admin")
	_, second := rl.check("admin")
	assert.Equal(t, 2*first, second)

	for range 20 {
		rl.recordFailure("admin")
	}
	_, capped := rl.check("admin")
	assert.Equal(t, maxLockout, capped)
}

func TestRateLimiter_SuccessResets(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("admin")
	}
	rl.recordSuccess("ADMIN ")
	blocked, _ := rl.check("admin")
	assert.False(t, blocked, "keys are case and whitespace insensitive")
}

func TestRateLimiter_LockoutAndRecordExpire(t *testing.T) {
	rl, clock := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("admin")
	}
	clock.advance(baseLockout + time.Second)
	blocked, _ := rl.check("admin")
	assert.False(t, blocked)

	clock.advance(attemptExpiry)
	rl.check("admin")
	assert.Empty(t, rl.attempts)
}

func TestRateLimiter_IndependentUsers(t *testing.T) {
	rl, _ := newTestLimiter()
	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("admin")
	}
	blocked, _ := rl.check("reader")
	assert.False(t, blocked)
}

func TestWriteRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	writeRateLimited(w, 1500*time.Millisecond)
	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "1", retryAfterString(0))
	assert.Equal(t, "90", retryAfterString(90*time.Second))
}
