package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/normalizer"
	"github.com/stemsi/exstem-assessment/internal/repository"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// Assessment errors.
var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation has expired")
	ErrAlreadyCompleted   = errors.New("assessment is already completed")
	ErrUnknownQuestion    = errors.New("question does not belong to the assessment")
	ErrInvalidResponse    = errors.New("response is not valid JSON")
)

// answersTTL bounds how long an abandoned session's autosave hash lingers.
const answersTTL = 48 * time.Hour

// SessionStore is the persistence the service needs for sessions.
type SessionStore interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.SessionRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRecord, error)
	MarkStarted(ctx context.Context, id uuid.UUID) (time.Time, error)
	Submit(ctx context.Context, id uuid.UUID, answers []model.StoredAnswer) (*repository.SubmitOutcome, error)
}

// AnswerLister returns the persisted answers of a session.
type AnswerLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StoredAnswer, error)
}

// AssessmentService handles the candidate-facing assessment lifecycle.
type AssessmentService struct {
	sessions SessionStore
	answers  AnswerLister
	rdb      *redis.Client
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(sessions SessionStore, answers AnswerLister, rdb *redis.Client, m *metrics.Metrics, log zerolog.Logger) *AssessmentService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AssessmentService{
		sessions: sessions,
		answers:  answers,
		rdb:      rdb,
		metrics:  m,
		log:      log.With().Str("component", "assessment_service").Logger(),
		now:      time.Now,
	}
}

// HashToken returns the stored digest of an invite token.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewInviteToken generates a fresh opaque invite token.
func NewInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Resolve looks up the session an invite token grants access to.
func (s *AssessmentService) Resolve(ctx context.Context, token string) (*model.SessionRecord, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvitationNotFound
	}
	rec, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// Bootstrap builds the payload the candidate client starts from. Prior
// responses are the persisted answers overlaid with the autosave hash, which
// may hold writes the worker has not persisted yet.
func (s *AssessmentService) Bootstrap(ctx context.Context, rec *model.SessionRecord) (*model.Bootstrap, error) {
	responses, err := s.currentAnswers(ctx, rec)
	if err != nil {
		return nil, err
	}

	questions := rec.Questions
	if len(questions) == 0 {
		questions = json.RawMessage("[]")
	}

	return &model.Bootstrap{
		ID:         rec.ID.String(),
		Title:      rec.Title,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		ExpiryDate: rec.ExpiryDate,
		Questions:  questions,
		Responses:  responses,
	}, nil
}

func (s *AssessmentService) currentAnswers(ctx context.Context, rec *model.SessionRecord) ([]model.RawResponse, error) {
	stored, err := s.answers.ListBySession(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	merged := make(map[string]json.RawMessage, len(stored))
	for _, a := range stored {
		merged[a.QuestionID] = a.Response
	}

	if rec.Status != model.SessionStatusCompleted {
		cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(rec.ID.String())).Result()
		if err != nil {
			// Persisted answers are still a valid, if older, view.
			s.log.Warn().Err(err).Str("session_id", rec.ID.String()).Msg("Autosave hash unavailable")
		}
		for qid, raw := range cached {
			merged[qid] = json.RawMessage(raw)
		}
	}

	out := make([]model.RawResponse, 0, len(merged))
	for qid, raw := range merged {
		if isEmptyResponse(raw) {
			continue
		}
		out = append(out, model.RawResponse{QuestionID: qid, Response: raw})
	}
	slices.SortFunc(out, func(a, b model.RawResponse) int { return strings.Compare(a.QuestionID, b.QuestionID) })
	return out, nil
}

// Start records that the candidate began. The first recorded start time
// always wins; later calls return it unchanged.
func (s *AssessmentService) Start(ctx context.Context, rec *model.SessionRecord) (*model.StartResult, error) {
	if rec.StartedAt != nil {
		return &model.StartResult{StartedAt: *rec.StartedAt, Status: rec.Status}, nil
	}
	if rec.Status == model.SessionStatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	if rec.ExpiryDate != nil && !s.now().Before(*rec.ExpiryDate) {
		return nil, ErrInvitationExpired
	}

	startedAt, err := s.sessions.MarkStarted(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mark started: %w", err)
	}
	s.metrics.SessionsStarted.Inc()
	s.publish(ctx, ws.SessionEvent{Event: ws.EventStarted, SessionID: rec.ID.String(), At: startedAt})

	return &model.StartResult{StartedAt: startedAt, Status: model.SessionStatusInProgress}, nil
}

// SaveAnswer autosaves one response: it lands in the Redis hash immediately
// and is queued for the persistence worker.
func (s *AssessmentService) SaveAnswer(ctx context.Context, rec *model.SessionRecord, req *model.SaveAnswerRequest) error {
	if rec.Status == model.SessionStatusCompleted {
		return ErrAlreadyCompleted
	}
	if !json.Valid(req.Response) {
		return ErrInvalidResponse
	}
	if !hasQuestion(rec, req.QuestionID) {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, req.QuestionID)
	}
	if rec.StartedAt == nil {
		// The start signal never arrived; the first save stands in for it.
		if _, err := s.Start(ctx, rec); err != nil {
			return err
		}
	}

	sessionID := rec.ID.String()
	job, err := json.Marshal(model.PersistAnswerJob{
		SessionID:  sessionID,
		QuestionID: req.QuestionID,
		Response:   req.Response,
		SavedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	answersKey := config.CacheKey.SessionAnswersKey(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, answersKey, req.QuestionID, string(req.Response))
		pipe.Expire(ctx, answersKey, answersTTL)
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job)
		return nil
	})
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	s.metrics.AnswersSaved.Inc()
	s.publish(ctx, ws.SessionEvent{
		Event:      ws.EventAnswerSaved,
		SessionID:  sessionID,
		QuestionID: req.QuestionID,
		At:         s.now().UTC(),
	})
	return nil
}

// Submit completes the session with the submitted answer set. A repeated
// submission reports AlreadyCompleted and rewrites nothing. A session whose
// start signal was lost is started and completed together.
func (s *AssessmentService) Submit(ctx context.Context, rec *model.SessionRecord, req *model.SubmitRequest) (*model.SubmitResult, error) {
	if rec.Status == model.SessionStatusCompleted {
		s.metrics.Submissions.WithLabelValues("duplicate").Inc()
		return &model.SubmitResult{Status: rec.Status, FinishedAt: rec.FinishedAt, AlreadyCompleted: true}, nil
	}
	answers := s.submittedAnswers(rec, req.Answers)
	out, err := s.sessions.Submit(ctx, rec.ID, answers)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("submit: %w", err)
	}

	finishedAt := out.FinishedAt
	res := &model.SubmitResult{
		Status:           model.SessionStatusCompleted,
		FinishedAt:       &finishedAt,
		AlreadyCompleted: out.AlreadyCompleted,
	}
	if out.AlreadyCompleted {
		s.metrics.Submissions.WithLabelValues("duplicate").Inc()
		return res, nil
	}

	sessionID := rec.ID.String()
	if err := s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to drop autosave hash")
	}
	s.metrics.Submissions.WithLabelValues("completed").Inc()
	s.publish(ctx, ws.SessionEvent{
		Event:     ws.EventSubmitted,
		SessionID: sessionID,
		Answered:  len(answers),
		At:        finishedAt,
	})

	s.log.Info().Str("session_id", sessionID).Int("answers", len(answers)).Msg("Assessment submitted")
	return res, nil
}

// submittedAnswers keeps the last entry per known question and drops empty
// responses.
func (s *AssessmentService) submittedAnswers(rec *model.SessionRecord, in []model.SubmitAnswer) []model.StoredAnswer {
	known := questionIDs(rec)
	index := make(map[string]int, len(in))
	out := make([]model.StoredAnswer, 0, len(in))

	for _, a := range in {
		if _, ok := known[a.QuestionID]; !ok {
			s.log.Warn().Str("session_id", rec.ID.String()).Str("question_id", a.QuestionID).Msg("Dropping answer to unknown question")
			continue
		}
		if !json.Valid(a.Response) || isEmptyResponse(a.Response) {
			continue
		}
		entry := model.StoredAnswer{SessionID: rec.ID, QuestionID: a.QuestionID, Response: a.Response}
		if i, dup := index[a.QuestionID]; dup {
			out[i] = entry
			continue
		}
		index[a.QuestionID] = len(out)
		out = append(out, entry)
	}
	return out
}

// Monitor returns the snapshot sent to a monitor when it connects.
func (s *AssessmentService) Monitor(ctx context.Context, id uuid.UUID) (*model.MonitorSnapshot, error) {
	rec, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	responses, err := s.currentAnswers(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &model.MonitorSnapshot{
		SessionID: rec.ID.String(),
		Status:    rec.Status,
		StartedAt: rec.StartedAt,
		Answered:  len(responses),
	}, nil
}

// Subscribe opens the event channel of a session. The caller closes it.
func (s *AssessmentService) Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(id.String()))
}

func (s *AssessmentService) publish(ctx context.Context, e ws.SessionEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(e.SessionID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("event", string(e.Event)).Msg("Publish failed")
	}
}

func questionIDs(rec *model.SessionRecord) map[string]struct{} {
	questions := normalizer.NormalizeQuestions(rec.Questions)
	ids := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		ids[q.ID] = struct{}{}
	}
	return ids
}

func hasQuestion(rec *model.SessionRecord, questionID string) bool {
	_, ok := questionIDs(rec)[questionID]
	return ok
}

func isEmptyResponse(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", `""`, "[]":
		return true
	}
	return false
}
