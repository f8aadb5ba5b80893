// Package quota implements the per-user paint quota as a token bucket:
// a capped count of tokens refilled one per interval, with one bucket per
// verified-user id. Guests never reach the limiter.
package quota

import (
	"sync"
	"time"

	"github.com/pixeldraw/pixeldraw/models"
)

type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*models.RateLimitEntry
	maxTokens  int
	interval   time.Duration
	idleWindow time.Duration
	now        func() time.Time
}

func NewLimiter(maxTokens int, interval, idleWindow time.Duration) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*models.RateLimitEntry),
		maxTokens:  maxTokens,
		interval:   interval,
		idleWindow: idleWindow,
		now:        time.Now,
	}
}

func (l *Limiter) MaxTokens() int { return l.maxTokens }

// SetClock replaces the limiter's time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// getOrCreate returns the bucket for key, creating it at full capacity on
// first use. Caller must hold l.mu.
func (l *Limiter) getOrCreate(key string, now time.Time) *models.RateLimitEntry {
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b := &models.RateLimitEntry{
		Tokens:         l.maxTokens,
		LastRefillTime: now.UnixMilli(),
		MaxTokens:      l.maxTokens,
	}
	l.buckets[key] = b
	return b
}

// refill credits floor(elapsed/interval) tokens capped at MaxTokens and
// advances LastRefillTime by that many whole intervals, so the next token
// stays aligned to the refill schedule. Caller must hold l.mu.
func (l *Limiter) refill(b *models.RateLimitEntry, now time.Time) {
	elapsed := now.UnixMilli() - b.LastRefillTime
	if elapsed < 0 {
		return
	}
	intervals := elapsed / l.interval.Milliseconds()
	if intervals <= 0 {
		return
	}
	b.Tokens += int(intervals)
	if b.Tokens > b.MaxTokens {
		b.Tokens = b.MaxTokens
	}
	b.LastRefillTime += intervals * l.interval.Milliseconds()
}

// Take consumes one token for key. On denial it reports the seconds
// remaining until the next token becomes available.
func (l *Limiter) Take(key string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.getOrCreate(key, now)
	l.refill(b, now)

	if b.Tokens > 0 {
		b.Tokens--
		return true, 0
	}
	return false, l.secondsToNextToken(b, now)
}

// Peek reports the current tokens for key and a pointer to the seconds
// until the next refill, nil when the bucket is already at capacity.
func (l *Limiter) Peek(key string) (tokens int, secondsToNext *int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.getOrCreate(key, now)
	l.refill(b, now)

	if b.Tokens >= b.MaxTokens {
		return b.Tokens, nil
	}
	s := l.secondsToNextToken(b, now)
	return b.Tokens, &s
}

// secondsToNextToken derives the wait from the interval-aligned remainder
// since the last refill. The remainder is clamped into [0, interval): a
// restored ledger can carry a LastRefillTime ahead of the local clock, and
// Go's % keeps the sign of the negative elapsed time. Caller must hold
// l.mu.
func (l *Limiter) secondsToNextToken(b *models.RateLimitEntry, now time.Time) int {
	intervalMs := l.interval.Milliseconds()
	sinceRefill := (now.UnixMilli() - b.LastRefillTime) % intervalMs
	if sinceRefill < 0 {
		sinceRefill += intervalMs
	}
	remainingMs := intervalMs - sinceRefill
	return int((remainingMs + 999) / 1000)
}

// Sweep removes buckets whose last refill is older than the idle window,
// bounding memory for departed users. Returns the number removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleWindow).UnixMilli()
	removed := 0
	for key, b := range l.buckets {
		if b.LastRefillTime < cutoff {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Export returns a copy of the ledger for persistence.
func (l *Limiter) Export() map[string]models.RateLimitEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]models.RateLimitEntry, len(l.buckets))
	for key, b := range l.buckets {
		out[key] = *b
	}
	return out
}

// Restore replaces the ledger with persisted entries. Entries are clamped
// into [0, MaxTokens] so a hand-edited or stale document can never violate
// the bucket invariant.
func (l *Limiter) Restore(entries map[string]models.RateLimitEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets = make(map[string]*models.RateLimitEntry, len(entries))
	for key, e := range entries {
		b := e
		if b.MaxTokens <= 0 {
			b.MaxTokens = l.maxTokens
		}
		if b.Tokens < 0 {
			b.Tokens = 0
		}
		if b.Tokens > b.MaxTokens {
			b.Tokens = b.MaxTokens
		}
		l.buckets[key] = &b
	}
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
