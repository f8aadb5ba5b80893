package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pixeldraw/pixeldraw/auth"
	"github.com/pixeldraw/pixeldraw/auth/mocks"
	"github.com/pixeldraw/pixeldraw/models"
)

var testUser = models.User{Id: "u1", Nickname: "alice", Avatar: "a.png"}

func newSessions(t *testing.T) (*auth.Sessions, *mocks.MockVerifier) {
	verifier := new(mocks.MockVerifier)
	return auth.NewSessions(verifier, []byte("test-secret"), time.Hour), verifier
}

func TestResolveNoCredentialsIsGuest(t *testing.T) {
	s, verifier := newSessions(t)

	identity := s.Resolve(context.Background(), "", "")

	assert.True(t, identity.IsGuest())
	verifier.AssertNotCalled(t, "Verify")
}

func TestResolveTokenVerifiesAndCaches(t *testing.T) {
	s, verifier := newSessions(t)
	verifier.On("Verify", mock.Anything, "good-token").Return(testUser, nil).Once()

	identity := s.Resolve(context.Background(), "good-token", "")

	assert.False(t, identity.IsGuest())
	assert.True(t, identity.FreshLogin)
	assert.Equal(t, testUser, identity.User)
	require.NotEmpty(t, identity.SessionKey)
	assert.Equal(t, 1, s.Len())
}

func TestResolveCachedSessionKeySkipsRemoteCall(t *testing.T) {
	s, verifier := newSessions(t)
	verifier.On("Verify", mock.Anything, "good-token").Return(testUser, nil).Once()

	first := s.Resolve(context.Background(), "good-token", "")
	require.NotEmpty(t, first.SessionKey)

	second := s.Resolve(context.Background(), "", first.SessionKey)

	assert.False(t, second.IsGuest())
	assert.False(t, second.FreshLogin, "cached resolution is not a fresh login")
	assert.Equal(t, testUser, second.User)
	assert.Equal(t, first.SessionKey, second.SessionKey)
	verifier.AssertNumberOfCalls(t, "Verify", 1)
}

func TestResolveVerificationFailureIsGuest(t *testing.T) {
	s, verifier := newSessions(t)
	verifier.On("Verify", mock.Anything, "bad-token").Return(models.User{}, errors.New("401"))

	identity := s.Resolve(context.Background(), "bad-token", "")

	assert.True(t, identity.IsGuest())
	assert.Equal(t, 0, s.Len())
}

func TestResolveUnknownSessionKeyFallsBackToToken(t *testing.T) {
	s, verifier := newSessions(t)
	verifier.On("Verify", mock.Anything, "good-token").Return(testUser, nil).Once()

	identity := s.Resolve(context.Background(), "good-token", "not-a-cached-key")

	assert.False(t, identity.IsGuest())
	assert.True(t, identity.FreshLogin)
}

func TestResolveUnknownSessionKeyWithoutTokenIsGuest(t *testing.T) {
	s, _ := newSessions(t)

	identity := s.Resolve(context.Background(), "", "not-a-cached-key")

	assert.True(t, identity.IsGuest())
}

func TestExpiredSessionKeyIsRejectedAndSwept(t *testing.T) {
	verifier := new(mocks.MockVerifier)
	verifier.On("Verify", mock.Anything, "good-token").Return(testUser, nil).Once()

	s := auth.NewSessions(verifier, []byte("test-secret"), time.Hour)
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	identity := s.Resolve(context.Background(), "good-token", "")
	require.NotEmpty(t, identity.SessionKey)

	// Jump past the TTL
	now = now.Add(2 * time.Hour)

	stale := s.Resolve(context.Background(), "", identity.SessionKey)
	assert.True(t, stale.IsGuest())

	assert.Equal(t, 0, s.Len(), "lookup of an expired key evicts it")
}

func TestSweepEvictsExpiredOnly(t *testing.T) {
	verifier := new(mocks.MockVerifier)
	verifier.On("Verify", mock.Anything, "old-token").Return(models.User{Id: "old"}, nil).Once()
	verifier.On("Verify", mock.Anything, "new-token").Return(models.User{Id: "new"}, nil).Once()

	s := auth.NewSessions(verifier, []byte("test-secret"), time.Hour)
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.Resolve(context.Background(), "old-token", "")
	now = now.Add(45 * time.Minute)
	s.Resolve(context.Background(), "new-token", "")
	now = now.Add(30 * time.Minute)
	// old: 75m ago (expired), new: 30m ago (live)

	removed := s.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}

func TestExportRestoreRoundTrip(t *testing.T) {
	verifier := new(mocks.MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(testUser, nil)

	s := auth.NewSessions(verifier, []byte("test-secret"), time.Hour)
	s.Resolve(context.Background(), "t1", "")
	s.Resolve(context.Background(), "t2", "")

	exported := s.Export()
	require.Len(t, exported, 2)

	restored := auth.NewSessions(verifier, []byte("test-secret"), time.Hour)
	restored.Restore(exported)

	assert.Equal(t, exported, restored.Export())
}

func TestRestoreSkipsForeignKeys(t *testing.T) {
	s, _ := newSessions(t)

	s.Restore([]models.SessionEntry{
		{Key: "not-a-signed-key", User: testUser},
		{Key: "", User: testUser},
	})

	assert.Equal(t, 0, s.Len())
}

func TestHTTPVerifierUnreachableEndpoint(t *testing.T) {
	v := auth.NewHTTPVerifier("http://127.0.0.1:1/verify")

	_, err := v.Verify(context.Background(), "token")

	assert.Error(t, err)
}
