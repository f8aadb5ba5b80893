package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pixeldraw/pixeldraw/models"
	"github.com/pixeldraw/pixeldraw/quota"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(maxTokens int) (*quota.Limiter, *fakeClock) {
	l := quota.NewLimiter(maxTokens, time.Minute, 5*time.Minute)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l.SetClock(clock.Now)
	return l, clock
}

func TestTakeConsumesDownToZero(t *testing.T) {
	l, _ := newLimiter(3)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Take("u1")
		assert.True(t, allowed, "take %d", i)
	}

	allowed, retryAfter := l.Take("u1")
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
	assert.LessOrEqual(t, retryAfter, 60)

	// Denial leaves tokens unchanged
	tokens, _ := l.Peek("u1")
	assert.Equal(t, 0, tokens)
}

func TestPeekDoesNotConsume(t *testing.T) {
	l, _ := newLimiter(5)

	tokens, next := l.Peek("u1")
	assert.Equal(t, 5, tokens)
	assert.Nil(t, next, "at capacity there is no next refill")

	tokens, _ = l.Peek("u1")
	assert.Equal(t, 5, tokens)
}

func TestPeekReportsSecondsToNextRefill(t *testing.T) {
	l, clock := newLimiter(5)

	l.Take("u1")
	clock.Advance(15 * time.Second)

	tokens, next := l.Peek("u1")
	assert.Equal(t, 4, tokens)
	if assert.NotNil(t, next) {
		assert.Equal(t, 45, *next)
	}
}

func TestRefillIsIntervalAligned(t *testing.T) {
	l, clock := newLimiter(10)

	for i := 0; i < 10; i++ {
		l.Take("u1")
	}

	// 90s = one whole interval plus a 30s remainder
	clock.Advance(90 * time.Second)

	tokens, next := l.Peek("u1")
	assert.Equal(t, 1, tokens)
	if assert.NotNil(t, next) {
		assert.Equal(t, 30, *next, "next token is aligned to the refill schedule, not the peek")
	}
}

func TestRefillCapsAtMaxTokens(t *testing.T) {
	l, clock := newLimiter(3)

	l.Take("u1")
	clock.Advance(time.Hour)

	tokens, next := l.Peek("u1")
	assert.Equal(t, 3, tokens)
	assert.Nil(t, next)
}

func TestDeniedThenAllowedAfterRefill(t *testing.T) {
	l, clock := newLimiter(10)

	for i := 0; i < 10; i++ {
		allowed, _ := l.Take("u1")
		assert.True(t, allowed)
	}

	allowed, retryAfter := l.Take("u1")
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)

	clock.Advance(time.Minute)

	allowed, _ = l.Take("u1")
	assert.True(t, allowed)

	tokens, _ := l.Peek("u1")
	assert.Equal(t, 0, tokens)
}

func TestBucketsAreIndependent(t *testing.T) {
	l, _ := newLimiter(1)

	allowed, _ := l.Take("u1")
	assert.True(t, allowed)
	allowed, _ = l.Take("u1")
	assert.False(t, allowed)

	allowed, _ = l.Take("u2")
	assert.True(t, allowed)
}

func TestSweepRemovesIdleBuckets(t *testing.T) {
	l, clock := newLimiter(5)

	l.Take("idle")
	clock.Advance(2 * time.Minute)
	l.Take("active")
	clock.Advance(4 * time.Minute)
	// "idle" was last touched 6m ago, "active" 4m ago; the window is 5m.

	removed := l.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())
}

func TestExportRestoreRoundTrip(t *testing.T) {
	l, clock := newLimiter(5)

	l.Take("u1")
	l.Take("u1")
	l.Take("u2")

	exported := l.Export()

	restored := quota.NewLimiter(5, time.Minute, 5*time.Minute)
	restored.SetClock(clock.Now)
	restored.Restore(exported)

	assert.Equal(t, exported, restored.Export())

	tokens, _ := restored.Peek("u1")
	assert.Equal(t, 3, tokens)
	tokens, _ = restored.Peek("u2")
	assert.Equal(t, 4, tokens)
}

func TestRetryAfterWithFutureRefillTimestamp(t *testing.T) {
	l, clock := newLimiter(5)

	// A restored ledger can be ahead of the local clock after a restart.
	l.Restore(map[string]models.RateLimitEntry{
		"u1": {
			Tokens:         0,
			LastRefillTime: clock.Now().Add(30 * time.Second).UnixMilli(),
			MaxTokens:      5,
		},
	})

	allowed, retryAfter := l.Take("u1")
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
	assert.LessOrEqual(t, retryAfter, 60, "never longer than one interval")

	tokens, next := l.Peek("u1")
	assert.Equal(t, 0, tokens)
	if assert.NotNil(t, next) {
		assert.LessOrEqual(t, *next, 60)
	}
}

func TestRestoreClampsOutOfRangeEntries(t *testing.T) {
	l, _ := newLimiter(5)

	l.Restore(map[string]models.RateLimitEntry{
		"over":  {Tokens: 99, LastRefillTime: 0, MaxTokens: 5},
		"under": {Tokens: -3, LastRefillTime: 0, MaxTokens: 5},
		"nomax": {Tokens: 2, LastRefillTime: 0},
	})

	exported := l.Export()
	assert.Equal(t, 5, exported["over"].Tokens)
	assert.Equal(t, 0, exported["under"].Tokens)
	assert.Equal(t, 5, exported["nomax"].MaxTokens)
}
