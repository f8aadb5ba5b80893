package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pixeldraw/pixeldraw/api/rest"
	"github.com/pixeldraw/pixeldraw/api/ws"
	"github.com/pixeldraw/pixeldraw/auth"
	"github.com/pixeldraw/pixeldraw/board"
	"github.com/pixeldraw/pixeldraw/config"
	"github.com/pixeldraw/pixeldraw/quota"
	"github.com/pixeldraw/pixeldraw/store"
)

type PixelDrawAPI struct {
	Hub  *ws.Hub
	Rest *rest.Handler

	wsHandler  *ws.Handler
	wsUpgrader websocket.Upgrader
}

func NewPixelDrawAPI(
	cfg *config.Config,
	canvas *board.Board,
	limiter *quota.Limiter,
	sessions *auth.Sessions,
	pixelStore store.Store,
) *PixelDrawAPI {
	hub := ws.NewHub(canvas, limiter, cfg.MinZoom, cfg.MaxZoom)
	return &PixelDrawAPI{
		Hub:        hub,
		Rest:       rest.NewHandler(cfg.BoardWidth, cfg.BoardHeight, pixelStore, cfg.DataDir),
		wsHandler:  ws.NewHandler(hub, sessions),
		wsUpgrader: ws.NewWsUpgrader(),
	}
}

func (a *PixelDrawAPI) RegisterRoutes(mux *http.ServeMux, staticDir string) {
	mux.HandleFunc("/health", a.Rest.HandleHealth)
	mux.HandleFunc("/api/board/status", a.Rest.HandleBoardStatus)
	mux.HandleFunc("/api/broadcast", a.Rest.HandleBulletin)

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.wsHandler.ServeWS(a.wsUpgrader, w, r)
	})

	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
}
