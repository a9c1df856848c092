package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is a persisted row of assessment_sessions. Questions are kept
// exactly as the authoring side wrote them.
type SessionRecord struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	Status     SessionStatus   `json:"status"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Questions  json.RawMessage `json:"questions"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StoredAnswer is a persisted row of assessment_answers.
type StoredAnswer struct {
	SessionID  uuid.UUID       `json:"session_id"`
	QuestionID string          `json:"question_id"`
	Response   json.RawMessage `json:"response"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CreateInvitationRequest describes a new invitation to be seeded.
type CreateInvitationRequest struct {
	Title      string          `json:"title" binding:"required,min=3,max=255"`
	ExpiryDate *time.Time      `json:"expiry_date" binding:"omitempty"`
	Questions  json.RawMessage `json:"questions" binding:"required"`
}

// PersistAnswerJob is queued on persist_answers_queue for every autosave.
type PersistAnswerJob struct {
	SessionID  string          `json:"session_id"`
	QuestionID string          `json:"question_id"`
	Response   json.RawMessage `json:"response"`
	SavedAt    time.Time       `json:"saved_at"`
}

// MonitorSnapshot summarises a session for live monitoring.
type MonitorSnapshot struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Answered  int           `json:"answered"`
}
