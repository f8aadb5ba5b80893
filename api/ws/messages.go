package ws

import (
	"encoding/json"

	"github.com/pixeldraw/pixeldraw/models"
)

// Wire protocol: every frame is a {"type": ..., "data": ...} envelope.
// The schema is closed; unknown types and malformed data are logged and
// ignored, never a reason to close the connection.

// Client -> server event types.
const (
	msgDrawPixel    = "draw-pixel"
	msgRequestQuota = "request-quota-update"
	msgPing         = "ping"
)

// Server -> client event types.
const (
	msgInitBoard      = "init-board"
	msgLoginSuccess   = "login-success"
	msgPixelUpdate    = "pixel-update"
	msgQuotaUpdate    = "quota-update"
	msgErrorMessage   = "error-message"
	msgServerShutdown = "server-shutdown"
	msgPong           = "pong"
)

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type serverMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type drawPixelData struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

type initBoardData struct {
	Board       [][]string `json:"board"`
	BoardWidth  int        `json:"boardWidth"`
	BoardHeight int        `json:"boardHeight"`
	MinZoom     float64    `json:"minZoom"`
	MaxZoom     float64    `json:"maxZoom"`
	MaxPixels   int        `json:"maxPixels"`
}

type loginSuccessData struct {
	User       models.User `json:"user"`
	SessionKey string      `json:"sessionKey"`
}

type pixelUpdateData struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// quotaUpdateData carries the retry countdown as a structured field;
// clients never have to parse it out of a human-readable message.
type quotaUpdateData struct {
	Tokens              int  `json:"tokens"`
	SecondsToNextRefill *int `json:"secondsToNextRefill"`
}

type errorMessageData struct {
	Message string `json:"message"`
}

type serverShutdownData struct {
	Timestamp string `json:"timestamp"`
}

func marshalServerMessage(msgType string, data any) ([]byte, error) {
	return json.Marshal(serverMessage{Type: msgType, Data: data})
}
