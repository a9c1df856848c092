package session

import (
	"errors"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// State is the controller's position in the session lifecycle.
type State string

const (
	StateLoading          State = "LOADING"
	StateReady            State = "BOOTSTRAP_READY"
	StateInProgress       State = "IN_PROGRESS"
	StateSubmitting       State = "SUBMITTING"
	StateCompleted        State = "COMPLETED"
	StateAlreadyCompleted State = "COMPLETED_ALREADY"
	StateExpiredOnLoad    State = "EXPIRED_ON_LOAD"
	StateError            State = "ERROR"
	// StateSubmitFailed is reached when time ran out and every automatic
	// submission attempt failed. The candidate must contact support.
	StateSubmitFailed State = "SUBMIT_FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateAlreadyCompleted, StateExpiredOnLoad, StateError, StateSubmitFailed:
		return true
	}
	return false
}

var (
	ErrAlreadyLoaded     = errors.New("session already loaded")
	ErrLoadFailed        = errors.New("assessment could not be loaded")
	ErrInvitationExpired = errors.New("invitation has expired")
	ErrNotReady          = errors.New("session is not ready to start")
	ErrNotInProgress     = errors.New("session is not in progress")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrInvalidResponse   = errors.New("response does not fit the question")
	ErrOutOfRange        = errors.New("question index out of range")
	ErrSubmitInFlight    = errors.New("submission already in progress")
)

// Candidate-facing messages.
const (
	msgLoadFailed       = "This assessment link is invalid or has expired."
	msgInviteExpired    = "This invitation has expired."
	msgStartNotSaved    = "We could not record your start time. You can keep going."
	msgSubmitFailed     = "Your answers could not be submitted. Please try again."
	msgContactSupport   = "Time is up but your answers could not be submitted. Please contact support."
	msgTimeUp           = "Time is up. Submitting your answers."
	msgExpiredOnLoad    = "The time for this assessment has elapsed."
	msgAlreadySubmitted = "This assessment has already been submitted."
)

// EventKind classifies controller events.
type EventKind string

const (
	EventStateChanged EventKind = "state"
	EventTick         EventKind = "tick"
	EventSaveStatus   EventKind = "save_status"
	EventNotice       EventKind = "notice"
)

// Event is delivered to the handler registered with WithEventHandler.
type Event struct {
	Kind       EventKind
	State      State
	Remaining  int
	SaveStatus model.SaveStatus
	Message    string
}

// Snapshot is a read-only view of the controller for rendering.
type Snapshot struct {
	State        State
	SessionID    string
	Title        string
	Index        int
	Total        int
	Question     *model.AssessmentQuestion
	Answer       *model.Response
	Flagged      bool
	Remaining    int
	SaveStatus   model.SaveStatus
	Answered     int
	FlaggedCount int
	Notice       string
	Error        string
}

// IsLast reports whether the current question is the final one.
func (s Snapshot) IsLast() bool {
	return s.Total > 0 && s.Index == s.Total-1
}
