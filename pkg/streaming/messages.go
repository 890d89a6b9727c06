// Package streaming defines the messages the websocket backend sends to a
// live ingest server.
package streaming

import (
	"encoding/json"

	"github.com/dontlook/stalker/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeAddPursuer   = "add_pursuer"
	TypeTick         = "tick"
	TypeTransition   = "transition"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
	// ID is the server-assigned session ID in the start_session ack.
	ID uint `json:"id,omitempty"`
}

// StartSessionPayload carries the session being recorded.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// NewEnvelope encodes a payload into a JSON Envelope.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
