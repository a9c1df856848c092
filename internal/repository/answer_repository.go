package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerRepository handles persisted answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ListBySession retrieves every persisted answer of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StoredAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, response, updated_at
		 FROM assessment_answers
		 WHERE session_id = $1
		 ORDER BY question_id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StoredAnswer
	for rows.Next() {
		var a model.StoredAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Response, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// UpsertIfOpen writes an autosaved answer unless the session has completed.
// It reports whether a row was written.
func (r *AnswerRepository) UpsertIfOpen(ctx context.Context, sessionID uuid.UUID, questionID string, response json.RawMessage) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO assessment_answers (session_id, question_id, response)
		 SELECT $1, $2, $3
		 WHERE EXISTS (
		     SELECT 1 FROM assessment_sessions WHERE id = $1 AND status <> $4
		 )
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET response = EXCLUDED.response, updated_at = NOW()`,
		sessionID, questionID, response, model.SessionStatusCompleted,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
