package ws

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/pixeldraw/pixeldraw/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Transport flood control, independent of the paint quota:
	// 20 messages per second with a burst of 30.
	messagesPerSecond = 20
	burstLimit        = 30
)

type MessageHandler func(client *Client, messageBytes []byte)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub     *Hub
	ws      *websocket.Conn
	conn    models.Connection
	handler MessageHandler
	limiter *rate.Limiter
	Send    chan []byte // Buffered channel of outbound messages.
}

func NewClient(hub *Hub, ws *websocket.Conn, conn models.Connection, handler MessageHandler) *Client {
	return &Client{
		hub:     hub,
		ws:      ws,
		conn:    conn,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
		Send:    make(chan []byte, 128),
	}
}

// Identity returns the principal resolved at connect time.
func (c *Client) Identity() models.Identity {
	return c.conn.Identity
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterCh <- c
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection %s: message rate limit exceeded", c.conn.Id)
			break
		}

		c.handler(c, messageBytes)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel: say goodbye properly.
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection"),
				)
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
