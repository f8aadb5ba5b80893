package ws

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"

	"github.com/pixeldraw/pixeldraw/auth"
)

type Handler struct {
	Hub      *Hub
	Sessions *auth.Sessions
}

func NewHandler(hub *Hub, sessions *auth.Sessions) *Handler {
	return &Handler{Hub: hub, Sessions: sessions}
}

func NewWsUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The canvas front end is served from this process, so a browser
		// Origin must match the request host. Non-browser clients send no
		// Origin at all.
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}

// ServeWS handles websocket requests from the peer. The handshake carries
// optional token / sessionKey credentials as query parameters; identity
// resolution happens here, on the request goroutine, so a slow identity
// provider never blocks other connections.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	if h.Hub.Stopped() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	identity := h.Sessions.Resolve(r.Context(), query.Get("token"), query.Get("sessionKey"))

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		log.Printf("Failed to generate connection id: %v", err)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, ConnectionFor(id.String(), clientIP(r), identity), h.HandleWsMessage)

	h.Hub.RegisterCh <- client

	go client.ReadPump()
	go client.WritePump()
}

// clientIP prefers the first X-Forwarded-For hop, then falls back to the
// transport address with any IPv4-mapped prefix stripped.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.TrimPrefix(addr, "::ffff:")
}

func (h *Handler) HandleWsMessage(client *Client, messageBytes []byte) {
	var msg clientMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON from %s: %v", client.conn.Id, err)
		return
	}

	switch msg.Type {
	case msgDrawPixel:
		var draw drawPixelData
		if err := json.Unmarshal(msg.Data, &draw); err != nil {
			log.Printf("Invalid draw-pixel data: %v", err)
			return
		}
		if !ValidColor(draw.Color) {
			log.Printf("Rejected draw-pixel with invalid color %q", draw.Color)
			return
		}
		h.Hub.PaintCh <- paintRequest{client: client, x: draw.X, y: draw.Y, color: draw.Color}

	case msgRequestQuota:
		h.Hub.QuotaCh <- client

	case msgPing:
		h.Hub.PingCh <- client

	default:
		log.Printf("Unknown message type: %q", msg.Type)
	}
}
