package store

import (
	"context"
	"errors"

	"github.com/pixeldraw/pixeldraw/models"
)

// State is the point-in-time application state handed to a save. Snapshots
// are copies; a save never reads live structures.
type State struct {
	Board      models.BoardDocument
	Sessions   []models.SessionEntry
	RateLimits map[string]models.RateLimitEntry
}

// LoadResult carries whatever documents loaded successfully. A missing or
// corrupt document leaves its field at the zero value; loading the others
// proceeds regardless.
type LoadResult struct {
	Board      *models.BoardDocument
	Sessions   []models.SessionEntry
	RateLimits map[string]models.RateLimitEntry
	LastSave   string
}

type Store interface {
	Load(ctx context.Context) LoadResult
	Save(ctx context.Context, state State) error
	SaveBackup(ctx context.Context, board models.BoardDocument) error
	RotateBackups() error
	LastSave() string
}

var ErrDocumentMissing = errors.New("document does not exist")
