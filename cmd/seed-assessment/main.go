package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/normalizer"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// demoQuestions mixes every payload shape seen from authoring tools: differing
// key names, numeric ids, options as objects, strings, nested wrappers and
// JSON-encoded strings, and type tokens in assorted spellings.
const demoQuestions = `[
	{"id": "q-lang", "text": "Which language is this service written in?", "type": "multiple-choice",
	 "options": [{"id": "go", "text": "Go"}, {"id": "py", "text": "Python"}, {"id": "rs", "text": "Rust"}],
	 "points": 2, "timeLimit": 60},
	{"_id": 2, "question": "Pick every consistent store.", "questionType": "MULTI_SELECT",
	 "choices": {"options": ["PostgreSQL", "Redis with AOF", "tmpfs"]}, "score": "3", "time_limit": "90"},
	{"questionId": "q-tf", "prompt": "A duplicate submit rewrites stored answers.", "question_type": "true_false",
	 "options": "[\"True\", \"False\"]", "timeLimitSeconds": 30},
	{"id": "q-short", "title": "Name the queue the autosave worker drains.", "type": "Short Answer", "time_limit": 45},
	{"id": "q-long", "text": "Describe how a lost start signal is recovered.", "type": "long_answer", "marks": 5, "timeLimit": 300},
	{"id": "q-code", "text": "Write a function that reverses a string.", "type": "coding", "points": 10, "timeLimit": 600},
	{"question_id": "q-legacy", "questionText": "Pick the odd one out.", "type": "single_select",
	 "answers": "red, green, seven"}
]`

func main() {
	var (
		title     string
		expiresIn time.Duration
		count     int
	)
	flag.StringVar(&title, "title", "Backend engineer screening", "Assessment title")
	flag.DurationVar(&expiresIn, "expires-in", 72*time.Hour, "Invitation lifetime, 0 for none")
	flag.IntVar(&count, "count", 1, "Number of invitations to create")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questions := json.RawMessage(demoQuestions)
	if n := len(normalizer.NormalizeQuestions(questions)); n == 0 {
		log.Fatal().Msg("Demo questions do not normalize")
	} else {
		fmt.Printf("=== Seeding %d invitation(s), %d questions each ===\n", count, n)
	}

	var expiry *time.Time
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn).UTC()
		expiry = &t
	}

	sessions := repository.NewAssessmentRepository(pool)
	for i := 0; i < count; i++ {
		token := service.NewInviteToken()
		rec := &model.SessionRecord{
			Title:      title,
			Questions:  questions,
			ExpiryDate: expiry,
		}
		if err := sessions.Create(ctx, rec, service.HashToken(token)); err != nil {
			log.Fatal().Err(err).Msg("Failed to create invitation")
		}
		fmt.Printf("session %s  token %s\n", rec.ID, token)
	}

	fmt.Println("\nTokens are shown once; only their digests are stored.")
}
