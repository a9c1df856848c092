package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStarted     Event = "started"
	EventAnswerSaved Event = "answer_saved"
	EventSubmitted   Event = "submitted"
	EventSnapshot    Event = "snapshot"
	EventError       Event = "error"
	EventPong        Event = "pong"
)

// SessionEvent is published on a session's Redis channel and relayed verbatim
// to monitor connections.
type SessionEvent struct {
	Event      Event     `json:"event"`
	SessionID  string    `json:"session_id"`
	QuestionID string    `json:"question_id,omitempty"`
	Answered   int       `json:"answered,omitempty"`
	At         time.Time `json:"at"`
}

// SnapshotResponse is sent once when a monitor connects.
type SnapshotResponse struct {
	Event     Event      `json:"event"`
	SessionID string     `json:"session_id"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Answered  int        `json:"answered"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
