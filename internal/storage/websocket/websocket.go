// Package websocket streams tick records to a live ingest server.
package websocket

import (
	"fmt"
	"log/slog"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/dontlook/stalker/pkg/streaming"
)

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	conn *connection
	cfg  config.WebsocketConfig
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebsocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were dropped because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	data, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session and waits for the server ack. An ID in the
// ack is stamped on s.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	ack, err := b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
	if err != nil {
		return err
	}
	if ack.ID != 0 {
		s.ID = ack.ID
	}
	return nil
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	_, err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) AddPursuer(p *core.Pursuer) error {
	return b.sendEnvelope(streaming.TypeAddPursuer, p)
}

func (b *Backend) RecordTick(r *core.TickRecord) error {
	return b.sendEnvelope(streaming.TypeTick, r)
}

func (b *Backend) RecordTransition(t *core.Transition) error {
	return b.sendEnvelope(streaming.TypeTransition, t)
}
