package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	popTimeout = time.Second
	retryDelay = 5 * time.Second
)

// AnswerWriter persists an autosaved answer unless its session has completed.
type AnswerWriter interface {
	UpsertIfOpen(ctx context.Context, sessionID uuid.UUID, questionID string, response json.RawMessage) (bool, error)
}

// AutosaveWorker consumes persist_answers_queue and UPSERTs answers to PostgreSQL.
type AutosaveWorker struct {
	answers    AnswerWriter
	rdb        *redis.Client
	metrics    *metrics.Metrics
	log        zerolog.Logger
	queue      string
	retryDelay time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(answers AnswerWriter, rdb *redis.Client, m *metrics.Metrics, log zerolog.Logger) *AutosaveWorker {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AutosaveWorker{
		answers:    answers,
		rdb:        rdb,
		metrics:    m,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		queue:      config.WorkerKey.PersistAnswersQueue,
		retryDelay: retryDelay,
	}
}

// Start runs the worker loop until ctx is cancelled, then drains the queue.
func (w *AutosaveWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return nil
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the timeout passes.
	result, err := w.rdb.BLPop(ctx, popTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			w.sleep(ctx)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying")
		// Push back to queue for retry.
		w.rdb.RPush(context.Background(), w.queue, result[1])
		w.sleep(ctx)
	}
}

// handle persists one queued job. Malformed jobs are dropped, not retried.
func (w *AutosaveWorker) handle(ctx context.Context, raw string) error {
	var job model.PersistAnswerJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		w.metrics.AnswersPersisted.WithLabelValues("malformed").Inc()
		return nil
	}
	sessionID, err := uuid.Parse(job.SessionID)
	if err != nil || job.QuestionID == "" || len(job.Response) == 0 {
		w.log.Error().Str("session_id", job.SessionID).Msg("Dropping malformed job")
		w.metrics.AnswersPersisted.WithLabelValues("malformed").Inc()
		return nil
	}

	written, err := w.answers.UpsertIfOpen(ctx, sessionID, job.QuestionID, job.Response)
	if err != nil {
		w.metrics.AnswersPersisted.WithLabelValues("error").Inc()
		return err
	}
	if !written {
		// The session completed after this save was queued.
		w.log.Debug().Str("session_id", job.SessionID).Str("question_id", job.QuestionID).Msg("Skipped answer of closed session")
		w.metrics.AnswersPersisted.WithLabelValues("skipped").Inc()
		return nil
	}
	w.metrics.AnswersPersisted.WithLabelValues("written").Inc()
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (w *AutosaveWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}
