package worker

import (
	"context"
	"log"
	"time"

	"github.com/pixeldraw/pixeldraw/store"
)

// Snapshotter produces a point-in-time copy of the application state. It
// must never hand out live structures; a save runs concurrently with
// traffic.
type Snapshotter func() store.State

// Autosaver periodically persists the full application state. Failures
// are logged and retried on the next tick; durability is best effort.
type Autosaver struct {
	store    store.Store
	interval time.Duration
	snapshot Snapshotter
}

func NewAutosaver(st store.Store, interval time.Duration, snapshot Snapshotter) *Autosaver {
	return &Autosaver{store: st, interval: interval, snapshot: snapshot}
}

func (a *Autosaver) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := a.store.Save(ctx, a.snapshot()); err != nil {
				log.Printf("Autosave failed: %v", err)
			}
			cancel()

		case <-shutdownCtx.Done():
			// The shutdown sequence performs its own final save after the
			// connections have drained.
			return
		}
	}
}
