package session

import (
	"context"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// API is the Assessment API collaborator, addressed by invite token.
type API interface {
	// Fetch returns the bootstrap payload. It is idempotent.
	Fetch(ctx context.Context, token string) (*model.Bootstrap, error)
	// Start records the start time server-side. Repeated calls are no-ops and
	// return the start time that was honored.
	Start(ctx context.Context, token string) (*model.StartResult, error)
	// Save upserts one answer. Last write wins.
	Save(ctx context.Context, token, questionID string, r model.Response) error
	// Submit completes the session with the full answer set. It is idempotent.
	Submit(ctx context.Context, token string, answers []model.AnswerEntry) (*model.SubmitResult, error)
}
