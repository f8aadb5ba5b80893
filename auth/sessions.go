// Package auth resolves an inbound connection's credentials into an
// identity: a previously cached session key wins without a remote call, a
// bearer token goes through the identity provider once, and every failure
// degrades to guest.
package auth

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pixeldraw/pixeldraw/models"
)

// Sessions caches sessionKey -> verified user. Keys are signed HS256
// tokens carrying the user id and an expiry, so the periodic sweep can
// evict stale entries without any per-entry bookkeeping and a presented
// key can be rejected after its TTL even if it is still cached.
type Sessions struct {
	verifier Verifier
	secret   []byte
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]models.User
	now   func() time.Time
}

func NewSessions(verifier Verifier, secret []byte, ttl time.Duration) *Sessions {
	return &Sessions{
		verifier: verifier,
		secret:   secret,
		ttl:      ttl,
		cache:    make(map[string]models.User),
		now:      time.Now,
	}
}

// SetClock replaces the session store's time source. Tests only.
func (s *Sessions) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Resolve evaluates the connection's credentials once at connect time.
// It never returns an error: every failure path resolves to guest.
func (s *Sessions) Resolve(ctx context.Context, token, sessionKey string) models.Identity {
	if sessionKey != "" {
		if user, ok := s.lookup(sessionKey); ok {
			return models.Identity{User: user, Verified: true, SessionKey: sessionKey}
		}
	}

	if token == "" {
		return models.Identity{}
	}

	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		log.Printf("Token verification failed, resolving to guest: %v", err)
		return models.Identity{}
	}

	// No FreshLogin without a key: the client would otherwise cache an
	// empty session key from the login-success event.
	key, err := s.mintKey(user)
	if err != nil {
		log.Printf("Failed to mint session key for user %s: %v", user.Id, err)
		return models.Identity{User: user, Verified: true}
	}

	s.mu.Lock()
	s.cache[key] = user
	s.mu.Unlock()

	return models.Identity{User: user, Verified: true, SessionKey: key, FreshLogin: true}
}

func (s *Sessions) lookup(key string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.cache[key]
	if !ok {
		return models.User{}, false
	}
	if s.keyExpiredLocked(key) {
		delete(s.cache, key)
		return models.User{}, false
	}
	return user, true
}

func (s *Sessions) mintKey(user models.User) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	now := s.clock()
	claims := jwt.MapClaims{
		"sub": user.Id,
		"jti": jti.String(),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// keyExpiredLocked reports whether key no longer parses as a valid,
// unexpired session token. Caller must hold s.mu.
func (s *Sessions) keyExpiredLocked(key string) bool {
	_, err := jwt.Parse(key, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	return err != nil
}

// Sweep evicts cache entries whose session key has expired. Returns the
// number removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.cache {
		if s.keyExpiredLocked(key) {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

// Export returns the live sessions as an ordered document for persistence.
func (s *Sessions) Export() []models.SessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.SessionEntry, 0, len(s.cache))
	for key, user := range s.cache {
		entries = append(entries, models.SessionEntry{Key: key, User: user})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Restore loads persisted sessions, skipping entries whose key is no
// longer valid so a restart does not resurrect expired logins.
func (s *Sessions) Restore(entries []models.SessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]models.User, len(entries))
	for _, e := range entries {
		if e.Key == "" || s.keyExpiredLocked(e.Key) {
			continue
		}
		s.cache[e.Key] = e.User
	}
}

// Len reports the number of cached sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
