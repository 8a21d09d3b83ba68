package broadcast

import (
	"encoding/json"
	"time"
)

// Message type constants for the live event stream.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeSignalChange = "signal_change"
	TypeAgentUpdate  = "agent_update"
)

// Envelope wraps all messages sent over the WebSocket. ID is a UUID so the
// receiving side can deduplicate replays after a reconnect.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload announces a new preemption session.
type SessionStartPayload struct {
	Session   string    `json:"session"`
	StartedAt time.Time `json:"startedAt"`
}

// SignalChangePayload reports a single signal gaining or losing its
// forced-go override.
type SignalChangePayload struct {
	Agent uint64    `json:"agent"`
	Light uint64    `json:"light"`
	Green bool      `json:"green"`
	At    time.Time `json:"at"`
}

// AgentUpdatePayload reports an agent's control loop starting or stopping.
type AgentUpdatePayload struct {
	Agent uint64    `json:"agent"`
	State string    `json:"state"`
	At    time.Time `json:"at"`
}
