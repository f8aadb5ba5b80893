package rest

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pixeldraw/pixeldraw/store"
)

const (
	bulletinFile        = "broadcast.txt"
	bulletinVersionFile = "broadcast-ver.json"

	defaultBulletin = "Welcome! Edit broadcast.txt in the data directory to change this notice."
)

type Handler struct {
	boardWidth  int
	boardHeight int
	store       store.Store
	bulletinDir string
	startedAt   time.Time
}

func NewHandler(boardWidth, boardHeight int, st store.Store, bulletinDir string) *Handler {
	return &Handler{
		boardWidth:  boardWidth,
		boardHeight: boardHeight,
		store:       st,
		bulletinDir: bulletinDir,
		startedAt:   time.Now(),
	}
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.sendResponse(w, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Seconds(),
	})
}

type boardStatusResponse struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	LastSave *string `json:"lastSave"`
}

func (h *Handler) HandleBoardStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := boardStatusResponse{Width: h.boardWidth, Height: h.boardHeight}
	if lastSave := h.store.LastSave(); lastSave != "" {
		resp.LastSave = &lastSave
	}
	h.sendResponse(w, resp)
}

type bulletinResponse struct {
	Content string `json:"content"`
	Version int    `json:"version"`
}

// HandleBulletin serves the operator-editable notice file. The version
// file lets clients re-show a notice the user already dismissed.
func (h *Handler) HandleBulletin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	content, err := os.ReadFile(filepath.Join(h.bulletinDir, bulletinFile))
	if err != nil {
		log.Printf("Bulletin file unreadable: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "bulletin file does not exist"})
		return
	}

	version := 1
	if verData, err := os.ReadFile(filepath.Join(h.bulletinDir, bulletinVersionFile)); err == nil {
		var ver struct {
			Version int `json:"version"`
		}
		if json.Unmarshal(verData, &ver) == nil && ver.Version > 0 {
			version = ver.Version
		}
	}

	h.sendResponse(w, bulletinResponse{Content: string(content), Version: version})
}

// EnsureBulletinFiles seeds the notice and version files with defaults
// when they do not exist yet.
func (h *Handler) EnsureBulletinFiles() error {
	bulletinPath := filepath.Join(h.bulletinDir, bulletinFile)
	if _, err := os.Stat(bulletinPath); os.IsNotExist(err) {
		if err := os.WriteFile(bulletinPath, []byte(defaultBulletin), 0o644); err != nil {
			return err
		}
	}

	versionPath := filepath.Join(h.bulletinDir, bulletinVersionFile)
	if _, err := os.Stat(versionPath); os.IsNotExist(err) {
		if err := os.WriteFile(versionPath, []byte("{\n  \"version\": 1\n}\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
