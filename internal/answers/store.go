// Package answers holds a session's captured responses and flagged questions.
package answers

import (
	"sort"
	"sync"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// Store maps question IDs to responses. An absent entry means unanswered.
// Empty responses are never stored.
type Store struct {
	mu      sync.RWMutex
	answers map[string]model.Response
	flagged map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		answers: make(map[string]model.Response),
		flagged: make(map[string]struct{}),
	}
}

// Load replaces the store's answers with entries persisted earlier. Later
// entries for the same question win.
func (s *Store) Load(entries []model.AnswerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = make(map[string]model.Response, len(entries))
	for _, e := range entries {
		if e.QuestionID == "" || e.Response.IsEmpty() {
			continue
		}
		s.answers[e.QuestionID] = e.Response
	}
}

// Capture records r for questionID. An empty response clears the entry.
// It reports whether the stored value changed.
func (s *Store) Capture(questionID string, r model.Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.answers[questionID]
	if r.IsEmpty() {
		delete(s.answers, questionID)
		return had
	}
	if had && prev.Equal(r) {
		return false
	}
	s.answers[questionID] = r
	return true
}

// Get returns the response recorded for questionID.
func (s *Store) Get(questionID string) (model.Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.answers[questionID]
	return r, ok
}

// ToggleFlag flips the review flag of questionID and returns the new state.
func (s *Store) ToggleFlag(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flagged[questionID]; ok {
		delete(s.flagged, questionID)
		return false
	}
	s.flagged[questionID] = struct{}{}
	return true
}

// IsFlagged reports whether questionID is flagged for review.
func (s *Store) IsFlagged(questionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flagged[questionID]
	return ok
}

// Flagged returns the flagged question IDs in sorted order.
func (s *Store) Flagged() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.flagged))
	for id := range s.flagged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of answered questions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// Entries returns the answers following the given question order. Answers to
// questions outside order are appended sorted by ID.
func (s *Store) Entries(order []string) []model.AnswerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AnswerEntry, 0, len(s.answers))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		seen[id] = struct{}{}
		if r, ok := s.answers[id]; ok {
			out = append(out, model.AnswerEntry{QuestionID: id, Response: r})
		}
	}

	var rest []string
	for id := range s.answers {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, model.AnswerEntry{QuestionID: id, Response: s.answers[id]})
	}
	return out
}
