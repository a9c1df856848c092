package model

import (
	"encoding/json"
	"time"
)

// SessionStatus enumerates assessment session states as stored by the server.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// AssessmentSession is one candidate's attempt, as seen by the session engine.
type AssessmentSession struct {
	ID           string               `json:"id"`
	Title        string               `json:"title,omitempty"`
	Status       SessionStatus        `json:"status"`
	InviteToken  string               `json:"-"`
	StartedAt    *time.Time           `json:"startedAt,omitempty"`
	ExpiryDate   *time.Time           `json:"expiryDate,omitempty"`
	Questions    []AssessmentQuestion `json:"questions"`
	PriorAnswers []AnswerEntry        `json:"priorAnswers"`
}

// AnswerEntry pairs a question with the candidate's response.
type AnswerEntry struct {
	QuestionID string   `json:"questionId"`
	Response   Response `json:"response"`
}

// Bootstrap is the wire payload of GET /assessments/{token}. Questions and
// responses are left raw; the normalizer canonicalizes them.
type Bootstrap struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	Status     SessionStatus   `json:"status"`
	StartedAt  *time.Time      `json:"startedAt"`
	ExpiryDate *time.Time      `json:"expiryDate,omitempty"`
	Questions  json.RawMessage `json:"questions"`
	Responses  []RawResponse   `json:"responses"`
}

// RawResponse is a previously persisted answer whose response shape is unknown.
type RawResponse struct {
	QuestionID string          `json:"questionId"`
	Response   json.RawMessage `json:"response"`
}

// StartResult is returned by POST /assessments/{token}/start.
type StartResult struct {
	StartedAt time.Time     `json:"startedAt"`
	Status    SessionStatus `json:"status"`
}

// SaveAnswerRequest is the payload of POST /assessments/{token}/save.
type SaveAnswerRequest struct {
	QuestionID string          `json:"questionId" binding:"required,nonblank,max=128"`
	Response   json.RawMessage `json:"response" binding:"required"`
}

// SubmitRequest is the payload of POST /assessments/{token}/submit.
type SubmitRequest struct {
	Answers []SubmitAnswer `json:"answers" binding:"dive"`
}

// SubmitAnswer is one entry of SubmitRequest.
type SubmitAnswer struct {
	QuestionID string          `json:"questionId" binding:"required,nonblank,max=128"`
	Response   json.RawMessage `json:"response" binding:"required"`
}

// SubmitResult is returned by POST /assessments/{token}/submit.
type SubmitResult struct {
	Status           SessionStatus `json:"status"`
	FinishedAt       *time.Time    `json:"finishedAt,omitempty"`
	AlreadyCompleted bool          `json:"alreadyCompleted"`
}
