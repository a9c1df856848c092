package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const sessionColumns = `id, title, status, started_at, finished_at, expiry_date, questions, created_at`

// SubmitOutcome reports what a submission did to the session row.
type SubmitOutcome struct {
	FinishedAt       time.Time
	AlreadyCompleted bool
}

// AssessmentRepository handles assessment session data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.SessionRecord, error) {
	s := &model.SessionRecord{}
	err := row.Scan(&s.ID, &s.Title, &s.Status, &s.StartedAt, &s.FinishedAt, &s.ExpiryDate, &s.Questions, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByTokenHash retrieves the session an invite token digest resolves to.
// It returns pgx.ErrNoRows when no invitation matches.
func (r *AssessmentRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.SessionRecord, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE invite_token_hash = $1`, tokenHash))
}

// GetByID retrieves a session by its ID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionRecord, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id))
}

// Create inserts a new invitation. s.ID and s.CreatedAt are filled in.
func (r *AssessmentRepository) Create(ctx context.Context, s *model.SessionRecord, tokenHash string) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions (title, invite_token_hash, status, questions, expiry_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, status, created_at`,
		s.Title, tokenHash, model.SessionStatusNotStarted, s.Questions, s.ExpiryDate,
	).Scan(&s.ID, &s.Status, &s.CreatedAt)
}

// MarkStarted records the start time the first time it is called and returns
// the start time in effect afterwards.
func (r *AssessmentRepository) MarkStarted(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var startedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE assessment_sessions
		 SET started_at = NOW(), status = $2
		 WHERE id = $1 AND started_at IS NULL
		 RETURNING started_at`,
		id, model.SessionStatusInProgress,
	).Scan(&startedAt)
	if err == nil {
		return startedAt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, err
	}

	// Already started (possibly concurrently): keep the first start time.
	err = r.pool.QueryRow(ctx,
		`SELECT started_at FROM assessment_sessions WHERE id = $1 AND started_at IS NOT NULL`, id,
	).Scan(&startedAt)
	return startedAt, err
}

// Submit replaces the answer set of the session and completes it, in one
// transaction. A session that is already completed is left untouched.
func (r *AssessmentRepository) Submit(ctx context.Context, id uuid.UUID, answers []model.StoredAnswer) (*SubmitOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status     model.SessionStatus
		finishedAt *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT status, finished_at FROM assessment_sessions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status, &finishedAt)
	if err != nil {
		return nil, err
	}
	if status == model.SessionStatusCompleted {
		out := &SubmitOutcome{AlreadyCompleted: true}
		if finishedAt != nil {
			out.FinishedAt = *finishedAt
		}
		return out, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM assessment_answers WHERE session_id = $1`, id); err != nil {
		return nil, fmt.Errorf("clear answers: %w", err)
	}

	if len(answers) > 0 {
		batch := &pgx.Batch{}
		for _, a := range answers {
			batch.Queue(
				`INSERT INTO assessment_answers (session_id, question_id, response)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (session_id, question_id) DO UPDATE
				 SET response = EXCLUDED.response, updated_at = NOW()`,
				id, a.QuestionID, a.Response,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert answers: %w", err)
		}
	}

	var out SubmitOutcome
	err = tx.QueryRow(ctx,
		`UPDATE assessment_sessions
		 SET status = $2, finished_at = NOW(), started_at = COALESCE(started_at, NOW())
		 WHERE id = $1
		 RETURNING finished_at`,
		id, model.SessionStatusCompleted,
	).Scan(&out.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &out, nil
}
