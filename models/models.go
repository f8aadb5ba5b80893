package models

import (
	"encoding/json"
	"time"
)

// User is a verified identity as returned by the identity provider.
type User struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// Identity is the resolved principal of a connection. A zero Identity is a
// guest. Once attached to a connection it is never mutated.
type Identity struct {
	User       User
	Verified   bool
	SessionKey string
	// FreshLogin is set when the identity was resolved via a remote
	// verification call on this connection, so the client still needs the
	// login-success payload carrying its new session key.
	FreshLogin bool
}

func (i Identity) IsGuest() bool {
	return !i.Verified
}

// RateLimitEntry is the persisted state of one token bucket.
type RateLimitEntry struct {
	Tokens         int   `json:"tokens"`
	LastRefillTime int64 `json:"lastRefillTime"` // unix milliseconds
	MaxTokens      int   `json:"maxTokens"`
}

// BoardDocument is the canonical persisted form of the canvas.
type BoardDocument struct {
	Board       [][]string `json:"board"`
	BoardWidth  int        `json:"boardWidth"`
	BoardHeight int        `json:"boardHeight"`
	LastSave    string     `json:"lastSave,omitempty"`
}

// SessionEntry is one (sessionKey, user) pair of the sessions document.
// The document is an ordered list of pairs rather than a JSON object so a
// load can reject individual malformed pairs without dropping the rest.
type SessionEntry struct {
	Key  string
	User User
}

// MarshalJSON encodes the entry as a [key, user] pair.
func (e SessionEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Key, e.User})
}

func (e *SessionEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &e.Key); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.User)
}

// Connection is the ephemeral per-transport-session record held by the hub.
type Connection struct {
	Id          string
	RemoteAddr  string
	Identity    Identity
	ConnectedAt time.Time
}
