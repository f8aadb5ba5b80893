package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixeldraw/pixeldraw/api"
	"github.com/pixeldraw/pixeldraw/auth"
	"github.com/pixeldraw/pixeldraw/board"
	"github.com/pixeldraw/pixeldraw/config"
	"github.com/pixeldraw/pixeldraw/models"
	"github.com/pixeldraw/pixeldraw/quota"
	"github.com/pixeldraw/pixeldraw/store"
	"github.com/pixeldraw/pixeldraw/store/file"
	"github.com/pixeldraw/pixeldraw/worker"
)

const (
	staticDir        = "public"
	shutdownTimeout  = 5 * time.Second
	forceExitTimeout = 10 * time.Second
)

func main() {
	cfg := config.LoadFromEnv()
	ctx := context.Background()

	pixelStore, err := file.NewStore(cfg.DataDir, cfg.EnableBackup, cfg.MaxBackups)
	if err != nil {
		log.Fatalf("Failed to create file store: %v", err)
	}

	canvas := board.New(cfg.BoardWidth, cfg.BoardHeight)
	limiter := quota.NewLimiter(cfg.MaxPixels, cfg.RefillInterval, cfg.IdleWindow)
	sessions := auth.NewSessions(auth.NewHTTPVerifier(cfg.VerifyURL), cfg.SessionSecret, cfg.SessionTTL)

	// Each document restores independently; a missing or corrupt one just
	// leaves its piece of state at the default.
	loaded := pixelStore.Load(ctx)
	if loaded.Board != nil {
		if canvas.Restore(loaded.Board.Board) {
			log.Printf("Restored %dx%d canvas (last save %s)", cfg.BoardWidth, cfg.BoardHeight, loaded.LastSave)
		} else {
			log.Printf("Persisted canvas does not match %dx%d, starting blank", cfg.BoardWidth, cfg.BoardHeight)
		}
	}
	sessions.Restore(loaded.Sessions)
	limiter.Restore(loaded.RateLimits)

	snapshot := func() store.State {
		return store.State{
			Board: models.BoardDocument{
				Board:       canvas.Snapshot(),
				BoardWidth:  cfg.BoardWidth,
				BoardHeight: cfg.BoardHeight,
			},
			Sessions:   sessions.Export(),
			RateLimits: limiter.Export(),
		}
	}

	pixelAPI := api.NewPixelDrawAPI(cfg, canvas, limiter, sessions, pixelStore)
	if err := pixelAPI.Rest.EnsureBulletinFiles(); err != nil {
		log.Printf("Failed to seed bulletin files: %v", err)
	}

	hubShutdown := make(chan struct{})
	go pixelAPI.Hub.Run(hubShutdown)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go worker.NewAutosaver(pixelStore, cfg.AutosaveInterval, snapshot).Run(workerCtx)
	go worker.NewSweeper(cfg.RefillInterval, limiter, sessions).Run(workerCtx)

	mux := http.NewServeMux()
	pixelAPI.RegisterRoutes(mux, staticDir)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Duplicate signals after the first are swallowed by the registered
	// handler, so a second Ctrl-C never escalates to a crash.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Println("Received shutdown signal, shutting down...")

	// Termination is guaranteed even if a drain step stalls.
	time.AfterFunc(forceExitTimeout, func() {
		log.Println("Shutdown stalled, forcing exit")
		os.Exit(0)
	})

	// Notify and drain every connection; the hub also stops accepting new
	// registrations from here on.
	close(hubShutdown)
	<-pixelAPI.Hub.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Listener close failed: %v", err)
	}

	log.Println("Saving canvas data...")
	saveCtx, cancelSave := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelSave()
	if err := pixelStore.Save(saveCtx, snapshot()); err != nil {
		log.Printf("Final save failed: %v", err)
	}
	if cfg.EnableBackup {
		log.Println("Creating backup...")
		if err := pixelStore.SaveBackup(saveCtx, snapshot().Board); err != nil {
			log.Printf("Final backup failed: %v", err)
		}
	}

	stopWorkers()
	log.Println("Server stopped")
}
