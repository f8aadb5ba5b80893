package ws

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/pixeldraw/pixeldraw/board"
	"github.com/pixeldraw/pixeldraw/models"
	"github.com/pixeldraw/pixeldraw/quota"
)

// shutdownGrace is how long clients get between the server-shutdown notice
// and their connection being closed.
const shutdownGrace = 500 * time.Millisecond

type paintRequest struct {
	client *Client
	x, y   int
	color  string
}

// Hub owns the set of live connections and serializes every paint against
// the canvas: board write, broadcast, and quota bookkeeping for one paint
// happen on the hub goroutine before the next paint is looked at, so
// clients converge through ordered single-cell deltas (last write wins).
type Hub struct {
	board   *board.Board
	limiter *quota.Limiter

	minZoom float64
	maxZoom float64

	RegisterCh   chan *Client
	UnregisterCh chan *Client
	PaintCh      chan paintRequest
	QuotaCh      chan *Client
	PingCh       chan *Client

	clients map[*Client]struct{}
	stopped atomic.Bool
	done    chan struct{}
}

func NewHub(b *board.Board, limiter *quota.Limiter, minZoom, maxZoom float64) *Hub {
	return &Hub{
		board:        b,
		limiter:      limiter,
		minZoom:      minZoom,
		maxZoom:      maxZoom,
		RegisterCh:   make(chan *Client, 256),
		UnregisterCh: make(chan *Client, 256),
		PaintCh:      make(chan paintRequest, 1024),
		QuotaCh:      make(chan *Client, 256),
		PingCh:       make(chan *Client, 256),
		clients:      make(map[*Client]struct{}),
		done:         make(chan struct{}),
	}
}

// Stopped reports whether the hub has entered shutdown and no longer
// accepts registrations.
func (h *Hub) Stopped() bool {
	return h.stopped.Load()
}

// Done is closed once the hub has notified and released every connection.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run processes hub events until shutdown is requested, then notifies and
// drains all connections before returning.
func (h *Hub) Run(shutdown <-chan struct{}) {
	defer close(h.done)

	for {
		select {
		case client := <-h.RegisterCh:
			h.register(client)

		case client := <-h.UnregisterCh:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Connection closed: %s (%s)", client.conn.Id, client.conn.RemoteAddr)
			}

		case req := <-h.PaintCh:
			h.paint(req)

		case client := <-h.QuotaCh:
			if _, ok := h.clients[client]; ok {
				h.sendQuota(client)
			}

		case client := <-h.PingCh:
			h.deliver(client, msgPong, nil)

		case <-shutdown:
			h.shutdownAll()
			return
		}
	}
}

func (h *Hub) register(client *Client) {
	h.clients[client] = struct{}{}
	log.Printf("Connection opened: %s (%s)", client.conn.Id, client.conn.RemoteAddr)

	h.deliver(client, msgInitBoard, initBoardData{
		Board:       h.board.Snapshot(),
		BoardWidth:  h.board.Width(),
		BoardHeight: h.board.Height(),
		MinZoom:     h.minZoom,
		MaxZoom:     h.maxZoom,
		MaxPixels:   h.limiter.MaxTokens(),
	})

	identity := client.conn.Identity
	if identity.FreshLogin && identity.SessionKey != "" {
		h.deliver(client, msgLoginSuccess, loginSuccessData{
			User:       identity.User,
			SessionKey: identity.SessionKey,
		})
	}

	h.sendQuota(client)
}

// paint applies one draw-pixel request. Guests are told to log in;
// out-of-bounds and no-op writes are dropped silently; a quota denial goes
// back to the requester only; an accepted paint is written through and the
// delta broadcast to every connection.
func (h *Hub) paint(req paintRequest) {
	if _, ok := h.clients[req.client]; !ok {
		return
	}

	identity := req.client.conn.Identity
	if identity.IsGuest() {
		h.deliver(req.client, msgErrorMessage, errorMessageData{Message: "You must log in before painting."})
		return
	}

	current, ok := h.board.Get(req.x, req.y)
	if !ok || current == req.color {
		return
	}

	allowed, retryAfter := h.limiter.Take(identity.User.Id)
	if !allowed {
		h.deliver(req.client, msgErrorMessage, errorMessageData{Message: "Out of pixels! Your next pixel is on its way."})
		h.deliver(req.client, msgQuotaUpdate, quotaUpdateData{Tokens: 0, SecondsToNextRefill: &retryAfter})
		return
	}

	if !h.board.Set(req.x, req.y, req.color) {
		return
	}

	h.broadcast(msgPixelUpdate, pixelUpdateData{X: req.x, Y: req.y, Color: req.color})
	h.sendQuota(req.client)
}

func (h *Hub) sendQuota(client *Client) {
	identity := client.conn.Identity
	if identity.IsGuest() {
		h.deliver(client, msgQuotaUpdate, quotaUpdateData{Tokens: 0, SecondsToNextRefill: nil})
		return
	}

	tokens, next := h.limiter.Peek(identity.User.Id)
	h.deliver(client, msgQuotaUpdate, quotaUpdateData{Tokens: tokens, SecondsToNextRefill: next})
}

func (h *Hub) broadcast(msgType string, data any) {
	payload, err := marshalServerMessage(msgType, data)
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", msgType, err)
		return
	}
	for client := range h.clients {
		h.deliverRaw(client, payload)
	}
}

func (h *Hub) deliver(client *Client, msgType string, data any) {
	payload, err := marshalServerMessage(msgType, data)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msgType, err)
		return
	}
	h.deliverRaw(client, payload)
}

// deliverRaw queues a frame without blocking the hub. A client whose send
// buffer is full has stalled; left connected it would keep missing
// broadcasts and diverge from the canvas, so it is disconnected and must
// reconnect for a fresh snapshot.
func (h *Hub) deliverRaw(client *Client, payload []byte) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
		delete(h.clients, client)
		close(client.Send)
		log.Printf("Send buffer full, disconnecting %s (%s)", client.conn.Id, client.conn.RemoteAddr)
	}
}

// shutdownAll broadcasts the shutdown notice, waits out the grace period,
// and closes every remaining connection. Safe to reach only once: Run
// returns immediately after.
func (h *Hub) shutdownAll() {
	h.stopped.Store(true)
	log.Printf("Disconnecting %d connection(s)", len(h.clients))

	if len(h.clients) == 0 {
		return
	}

	h.broadcast(msgServerShutdown, serverShutdownData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	time.Sleep(shutdownGrace)

	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
}

// ConnectionFor builds the ephemeral connection record the hub keeps per
// client.
func ConnectionFor(id, remoteAddr string, identity models.Identity) models.Connection {
	return models.Connection{
		Id:          id,
		RemoteAddr:  remoteAddr,
		Identity:    identity,
		ConnectedAt: time.Now(),
	}
}
