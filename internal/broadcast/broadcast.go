// Package broadcast streams signal override events to a companion web
// server over WebSocket, so dashboards can show live preemption activity.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher is the event surface the control side talks to. The WebSocket
// client implements it; Nop stands in when broadcasting is disabled.
type Publisher interface {
	SignalChange(agent, light uint64, green bool, at time.Time)
	AgentUpdate(agent uint64, state string, at time.Time)
}

// Nop is a Publisher that discards everything.
type Nop struct{}

func (Nop) SignalChange(agent, light uint64, green bool, at time.Time) {}
func (Nop) AgentUpdate(agent uint64, state string, at time.Time)       {}

// Config holds WebSocket client configuration.
type Config struct {
	URL    string
	Secret string
}

// Client streams preemption events over WebSocket.
// Session boundaries are acked by the server; per-signal events are
// fire-and-forget.
type Client struct {
	conn *connection
	cfg  Config
}

// New creates a new broadcast client. It does not connect.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Connect dials the event server.
func (c *Client) Connect() error {
	return c.conn.dial(c.cfg.URL, c.cfg.Secret)
}

// Close disconnects from the event server.
func (c *Client) Close() error {
	return c.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope with a fresh event ID.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, ID: uuid.NewString(), Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// (fire-and-forget).
func (c *Client) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		c.conn.logger.Error("Failed to marshal broadcast event", "type", msgType, "error", err)
		return
	}
	c.conn.send(data)
}

// StartSession announces the session and waits for the server ack.
func (c *Client) StartSession(session string, startedAt time.Time) error {
	data, err := marshalEnvelope(TypeSessionStart, SessionStartPayload{
		Session:   session,
		StartedAt: startedAt,
	})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	c.conn.mu.Lock()
	c.conn.cachedSessionMsg = data
	c.conn.mu.Unlock()

	return c.conn.sendAndWait(data, TypeSessionStart, ackTimeout)
}

// EndSession sends session_end and waits for the server ack.
func (c *Client) EndSession() error {
	data, err := marshalEnvelope(TypeSessionEnd, nil)
	if err != nil {
		return err
	}

	err = c.conn.sendAndWait(data, TypeSessionEnd, ackTimeout)

	// Clear cached state regardless of error.
	c.conn.mu.Lock()
	c.conn.cachedSessionMsg = nil
	c.conn.mu.Unlock()

	return err
}

// SignalChange reports a signal gaining or losing its override.
func (c *Client) SignalChange(agent, light uint64, green bool, at time.Time) {
	c.sendEnvelope(TypeSignalChange, SignalChangePayload{
		Agent: agent,
		Light: light,
		Green: green,
		At:    at,
	})
}

// AgentUpdate reports an agent control loop state change.
func (c *Client) AgentUpdate(agent uint64, state string, at time.Time) {
	c.sendEnvelope(TypeAgentUpdate, AgentUpdatePayload{
		Agent: agent,
		State: state,
		At:    at,
	})
}
