package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixeldraw/pixeldraw/api/rest"
	"github.com/pixeldraw/pixeldraw/store/mocks"
)

func TestHandleHealth(t *testing.T) {
	h := rest.NewHandler(100, 100, new(mocks.MockStore), t.TempDir())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["timestamp"])
	assert.GreaterOrEqual(t, resp["uptime"].(float64), 0.0)
}

func TestHandleHealthRejectsPost(t *testing.T) {
	h := rest.NewHandler(100, 100, new(mocks.MockStore), t.TempDir())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleBoardStatus(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockStore.On("LastSave").Return("2026-01-02T03:04:05Z")

	h := rest.NewHandler(200, 150, mockStore, t.TempDir())

	rec := httptest.NewRecorder()
	h.HandleBoardStatus(rec, httptest.NewRequest(http.MethodGet, "/api/board/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"width":200,"height":150,"lastSave":"2026-01-02T03:04:05Z"}`, rec.Body.String())
}

func TestHandleBoardStatusNeverSaved(t *testing.T) {
	mockStore := new(mocks.MockStore)
	mockStore.On("LastSave").Return("")

	h := rest.NewHandler(100, 100, mockStore, t.TempDir())

	rec := httptest.NewRecorder()
	h.HandleBoardStatus(rec, httptest.NewRequest(http.MethodGet, "/api/board/status", nil))

	assert.JSONEq(t, `{"width":100,"height":100,"lastSave":null}`, rec.Body.String())
}

func TestHandleBulletin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcast.txt"), []byte("maintenance at noon"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcast-ver.json"), []byte(`{"version":7}`), 0o644))

	h := rest.NewHandler(100, 100, new(mocks.MockStore), dir)

	rec := httptest.NewRecorder()
	h.HandleBulletin(rec, httptest.NewRequest(http.MethodGet, "/api/broadcast", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"maintenance at noon","version":7}`, rec.Body.String())
}

func TestHandleBulletinMissingVersionDefaultsToOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcast.txt"), []byte("hello"), 0o644))

	h := rest.NewHandler(100, 100, new(mocks.MockStore), dir)

	rec := httptest.NewRecorder()
	h.HandleBulletin(rec, httptest.NewRequest(http.MethodGet, "/api/broadcast", nil))

	assert.JSONEq(t, `{"content":"hello","version":1}`, rec.Body.String())
}

func TestHandleBulletinMissingFileIsServerError(t *testing.T) {
	h := rest.NewHandler(100, 100, new(mocks.MockStore), t.TempDir())

	rec := httptest.NewRecorder()
	h.HandleBulletin(rec, httptest.NewRequest(http.MethodGet, "/api/broadcast", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEnsureBulletinFiles(t *testing.T) {
	dir := t.TempDir()
	h := rest.NewHandler(100, 100, new(mocks.MockStore), dir)

	require.NoError(t, h.EnsureBulletinFiles())

	content, err := os.ReadFile(filepath.Join(dir, "broadcast.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, content)

	// Existing content is never overwritten
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcast.txt"), []byte("custom"), 0o644))
	require.NoError(t, h.EnsureBulletinFiles())
	content, err = os.ReadFile(filepath.Join(dir, "broadcast.txt"))
	require.NoError(t, err)
	assert.Equal(t, "custom", string(content))
}
