// Package file persists the application state as three independent JSON
// documents under a data directory, plus timestamped backup copies of the
// board document. The documents are deliberately separate files so that
// corruption of one never blocks recovery of the others.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/pixeldraw/pixeldraw/models"
	"github.com/pixeldraw/pixeldraw/store"
)

const (
	boardFile      = "board.json"
	sessionsFile   = "sessions.json"
	rateLimitsFile = "rate_limits.json"

	backupDir    = "backup"
	backupPrefix = "board_backup_"
	backupSuffix = ".json"
)

type Store struct {
	dataDir      string
	enableBackup bool
	maxBackups   int

	mu       sync.Mutex
	lastSave string
}

func NewStore(dataDir string, enableBackup bool, maxBackups int) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, backupDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dataDir:      dataDir,
		enableBackup: enableBackup,
		maxBackups:   maxBackups,
	}, nil
}

// Load reads the three documents independently. A missing or unreadable
// document is logged and leaves that piece of the result empty; it never
// aborts the other loads.
func (s *Store) Load(ctx context.Context) store.LoadResult {
	var result store.LoadResult

	var boardDoc models.BoardDocument
	if err := s.readDocument(boardFile, &boardDoc); err != nil {
		log.Printf("Board document not loaded: %v", err)
	} else {
		result.Board = &boardDoc
		result.LastSave = boardDoc.LastSave
		s.setLastSave(boardDoc.LastSave)
	}

	var sessions []models.SessionEntry
	if err := s.readDocument(sessionsFile, &sessions); err != nil {
		log.Printf("Sessions document not loaded: %v", err)
	} else {
		result.Sessions = sessions
	}

	var rateLimits map[string]models.RateLimitEntry
	if err := s.readDocument(rateLimitsFile, &rateLimits); err != nil {
		log.Printf("Rate limit document not loaded: %v", err)
	} else {
		result.RateLimits = rateLimits
	}

	return result
}

// Save writes the three canonical documents concurrently, overwriting in
// place. Each write is atomic (temp file + rename) so a crash mid-save
// never leaves a truncated document behind.
func (s *Store) Save(ctx context.Context, state store.State) error {
	now := time.Now().UTC().Format(time.RFC3339)
	state.Board.LastSave = now

	if state.Sessions == nil {
		state.Sessions = []models.SessionEntry{}
	}
	if state.RateLimits == nil {
		state.RateLimits = map[string]models.RateLimitEntry{}
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)

	writes := []struct {
		name string
		doc  any
	}{
		{boardFile, state.Board},
		{sessionsFile, state.Sessions},
		{rateLimitsFile, state.RateLimits},
	}

	for i, w := range writes {
		wg.Add(1)
		go func(i int, name string, doc any) {
			defer wg.Done()
			errs[i] = s.writeDocument(name, doc)
		}(i, w.name, w.doc)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("save %s: %w", writes[i].name, err)
		}
	}

	s.setLastSave(now)
	return nil
}

// SaveBackup writes an immutable timestamped copy of the board document to
// the backup directory and rotates old backups. When backups are disabled
// it is a no-op that still reports success.
func (s *Store) SaveBackup(ctx context.Context, boardDoc models.BoardDocument) error {
	if !s.enableBackup {
		return nil
	}

	boardDoc.LastSave = time.Now().UTC().Format(time.RFC3339)
	name := filepath.Join(backupDir, fmt.Sprintf("%s%d%s", backupPrefix, time.Now().UnixMilli(), backupSuffix))
	if err := s.writeDocument(name, boardDoc); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	if err := s.RotateBackups(); err != nil {
		log.Printf("Backup rotation failed: %v", err)
	}
	return nil
}

// RotateBackups deletes every backup beyond the retention count, oldest
// first by modification time. Individual delete failures are logged, not
// fatal.
func (s *Store) RotateBackups() error {
	dir := filepath.Join(s.dataDir, backupDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var backups []backup
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})

	for _, old := range backups[min(len(backups), s.maxBackups):] {
		if err := os.Remove(old.path); err != nil {
			log.Printf("Failed to delete old backup %s: %v", old.path, err)
		} else {
			log.Printf("Deleted old backup: %s", filepath.Base(old.path))
		}
	}
	return nil
}

// LastSave reports the timestamp of the most recent successful save, empty
// when nothing has been saved or loaded yet.
func (s *Store) LastSave() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

func (s *Store) setLastSave(ts string) {
	s.mu.Lock()
	s.lastSave = ts
	s.mu.Unlock()
}

func (s *Store) readDocument(name string, out any) error {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", name, store.ErrDocumentMissing)
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeDocument(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(s.dataDir, name), bytes.NewReader(data))
}
