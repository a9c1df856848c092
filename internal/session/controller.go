// Package session orchestrates one candidate's timed assessment: bootstrap and
// resume, the countdown, answer capture, autosave and submission.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/answers"
	"github.com/stemsi/exstem-assessment/internal/autosave"
	"github.com/stemsi/exstem-assessment/internal/clock"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/normalizer"
)

// Controller is the state machine behind the assessment-taking screen. It owns
// the answer store and flag set for the lifetime of one session.
type Controller struct {
	api   API
	token string

	now            func() time.Time
	tick           time.Duration
	submitRetries  int
	retryDelay     time.Duration
	requestTimeout time.Duration
	autosaveOpts   []autosave.Option
	log            zerolog.Logger
	onEvent        func(Event)

	store    *answers.Store
	pipeline *autosave.Pipeline

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	mu         sync.Mutex
	state      State
	session    model.AssessmentSession
	byID       map[string]int
	index      int
	budget     time.Duration
	clock      clock.Clock
	countdown  *clock.Countdown
	timeUp     bool
	closed     bool
	notice     string
	errMessage string
}

// New builds a controller for the session behind token. Call Load next.
func New(api API, token string, opts ...Option) *Controller {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	c := &Controller{
		api:            api,
		token:          token,
		now:            time.Now,
		tick:           time.Second,
		submitRetries:  DefaultSubmitRetries,
		retryDelay:     DefaultSubmitRetryDelay,
		requestTimeout: DefaultRequestTimeout,
		log:            zerolog.Nop(),
		store:          answers.NewStore(),
		bgCtx:          bgCtx,
		bgCancel:       bgCancel,
		state:          StateLoading,
		byID:           map[string]int{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "session_controller").Logger()

	pipelineOpts := append([]autosave.Option{
		autosave.WithLogger(c.log),
		autosave.OnStatus(func(s model.SaveStatus) {
			c.emit(Event{Kind: EventSaveStatus, SaveStatus: s})
		}),
	}, c.autosaveOpts...)
	c.pipeline = autosave.New(autosave.SaverFunc(c.saveAnswer), pipelineOpts...)

	return c
}

// Load fetches the session and moves to the state its server-side record
// implies. A resumed session whose time has elapsed never reaches
// IN_PROGRESS.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return ErrAlreadyLoaded
	}
	c.mu.Unlock()

	b, err := c.api.Fetch(ctx, c.token)
	if err != nil || b == nil {
		if err == nil {
			err = ErrLoadFailed
		}
		c.log.Error().Err(err).Msg("Failed to load assessment")
		c.fail(msgLoadFailed)
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	questions := normalizer.NormalizeQuestions(b.Questions)
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}

	c.mu.Lock()
	c.session = model.AssessmentSession{
		ID:           b.ID,
		Title:        b.Title,
		Status:       b.Status,
		InviteToken:  c.token,
		StartedAt:    b.StartedAt,
		ExpiryDate:   b.ExpiryDate,
		Questions:    questions,
		PriorAnswers: priorAnswers(b.Responses, questions, byID),
	}
	c.byID = byID
	c.budget = clock.TotalBudget(questions)
	c.store.Load(c.session.PriorAnswers)

	now := c.now()
	var (
		retErr   error
		expired  bool
		resuming bool
	)
	switch {
	case b.Status == model.SessionStatusCompleted:
		c.state = StateAlreadyCompleted
		c.notice = msgAlreadySubmitted

	case b.StartedAt != nil:
		c.clock = clock.New(*b.StartedAt, c.budget, b.ExpiryDate)
		if c.clock.Expired(now) {
			c.state = StateExpiredOnLoad
			c.notice = msgExpiredOnLoad
			expired = true
		} else {
			c.enterInProgressLocked()
			resuming = true
		}

	case b.ExpiryDate != nil && !now.Before(*b.ExpiryDate):
		c.state = StateError
		c.errMessage = msgInviteExpired
		retErr = ErrInvitationExpired

	default:
		c.state = StateReady
	}
	state := c.state
	c.mu.Unlock()

	c.log.Info().
		Str("session_id", b.ID).
		Str("state", string(state)).
		Int("questions", len(questions)).
		Bool("resumed", resuming).
		Msg("Assessment loaded")

	if expired {
		c.submitExpiredOnLoad()
	}
	c.emit(Event{Kind: EventStateChanged, State: state})
	return retErr
}

func priorAnswers(raw []model.RawResponse, questions []model.AssessmentQuestion, byID map[string]int) []model.AnswerEntry {
	out := make([]model.AnswerEntry, 0, len(raw))
	for _, r := range raw {
		i, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		resp, ok := normalizer.NormalizeResponse(r.Response, questions[i].Type)
		if !ok {
			continue
		}
		out = append(out, model.AnswerEntry{QuestionID: r.QuestionID, Response: resp})
	}
	return out
}

// Start confirms the candidate is beginning. The server-side start signal is
// sent in the background; its failure never blocks the candidate. Starting a
// session that is already running is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateInProgress, StateSubmitting:
		c.mu.Unlock()
		return nil
	case StateReady:
	default:
		c.mu.Unlock()
		return ErrNotReady
	}

	c.clock = clock.New(c.now(), c.budget, c.session.ExpiryDate)
	c.enterInProgressLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventStateChanged, State: StateInProgress})

	c.goBackground(func(bgCtx context.Context) {
		callCtx, cancel := context.WithTimeout(bgCtx, c.requestTimeout)
		defer cancel()
		res, err := c.api.Start(callCtx, c.token)
		if err != nil {
			c.log.Warn().Err(err).Msg("Start signal failed")
			c.setNotice(msgStartNotSaved)
			return
		}
		if res != nil && !res.StartedAt.IsZero() {
			c.reanchor(res.StartedAt)
		}
	})
	return nil
}

// enterInProgressLocked enables autosave and starts the countdown on c.clock.
func (c *Controller) enterInProgressLocked() {
	c.state = StateInProgress
	c.pipeline.Enable()
	c.startCountdownLocked()
}

func (c *Controller) startCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
	}
	var cd *clock.Countdown
	cd = clock.NewCountdown(c.clock, c.handleTick, func() { c.handleExpire(cd) },
		clock.WithInterval(c.tick),
		clock.WithNow(c.now),
	)
	c.countdown = cd
	cd.Start()
}

// reanchor moves the clock onto the start time the server honored.
func (c *Controller) reanchor(startedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress || c.clock.StartedAt.Equal(startedAt) {
		return
	}
	c.session.StartedAt = &startedAt
	c.clock = clock.New(startedAt, c.budget, c.session.ExpiryDate)
	c.startCountdownLocked()
}

func (c *Controller) handleTick(remaining int) {
	c.emit(Event{Kind: EventTick, Remaining: remaining})
}

// handleExpire runs once per countdown when the clock reaches zero. Expiry of
// a countdown replaced by reanchor is ignored.
func (c *Controller) handleExpire(cd *clock.Countdown) {
	c.mu.Lock()
	if cd != c.countdown || c.timeUp {
		c.mu.Unlock()
		return
	}
	c.timeUp = true
	if c.state != StateInProgress {
		// An explicit submission is in flight; its failure path resubmits.
		c.mu.Unlock()
		return
	}
	c.state = StateSubmitting
	c.notice = msgTimeUp
	entries := c.entriesLocked()
	c.mu.Unlock()

	c.log.Info().Msg("Time is up, submitting")
	c.emit(Event{Kind: EventStateChanged, State: StateSubmitting})
	c.emit(Event{Kind: EventNotice, Message: msgTimeUp})

	c.goBackground(func(bgCtx context.Context) {
		c.autoSubmit(bgCtx, entries, 0)
	})
}

// autoSubmit keeps trying a timer-forced submission, then gives up into
// StateSubmitFailed. attempts counts tries already made. Only Close stops it
// short of a terminal state.
func (c *Controller) autoSubmit(ctx context.Context, entries []model.AnswerEntry, attempts int) {
retry:
	for ; attempts <= c.submitRetries; attempts++ {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				break retry
			case <-time.After(c.retryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		_, err := c.api.Submit(callCtx, c.token, entries)
		cancel()
		if err == nil {
			c.complete()
			return
		}
		c.log.Error().Err(err).Int("attempt", attempts+1).Msg("Automatic submission failed")
	}

	c.mu.Lock()
	if c.closed || c.state == StateCompleted {
		c.mu.Unlock()
		return
	}
	c.state = StateSubmitFailed
	c.errMessage = msgContactSupport
	c.teardownLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventStateChanged, State: StateSubmitFailed})
	c.emit(Event{Kind: EventNotice, Message: msgContactSupport})
}

// Submit completes the session with the current answers. A second call while
// one is in flight returns ErrSubmitInFlight; once completed, Submit is a
// no-op. On failure the session stays in progress so the candidate can retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateCompleted, StateAlreadyCompleted:
		c.mu.Unlock()
		return nil
	case StateSubmitting:
		c.mu.Unlock()
		return ErrSubmitInFlight
	case StateInProgress:
	default:
		c.mu.Unlock()
		return ErrNotInProgress
	}
	c.state = StateSubmitting
	entries := c.entriesLocked()
	c.mu.Unlock()

	c.emit(Event{Kind: EventStateChanged, State: StateSubmitting})

	_, err := c.api.Submit(ctx, c.token, entries)
	if err == nil {
		c.complete()
		return nil
	}

	c.log.Error().Err(err).Msg("Submission failed")

	c.mu.Lock()
	if c.timeUp {
		// The countdown ended meanwhile and did not submit on its own.
		c.notice = msgTimeUp
		c.mu.Unlock()
		c.goBackground(func(bgCtx context.Context) {
			c.autoSubmit(bgCtx, entries, 1)
		})
		return fmt.Errorf("submit: %w", err)
	}
	c.state = StateInProgress
	c.notice = msgSubmitFailed
	c.mu.Unlock()

	c.emit(Event{Kind: EventStateChanged, State: StateInProgress})
	c.emit(Event{Kind: EventNotice, Message: msgSubmitFailed})
	return fmt.Errorf("submit: %w", err)
}

func (c *Controller) complete() {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return
	}
	c.state = StateCompleted
	c.session.Status = model.SessionStatusCompleted
	c.notice = ""
	c.teardownLocked()
	c.mu.Unlock()

	c.log.Info().Str("session_id", c.session.ID).Msg("Assessment submitted")
	c.emit(Event{Kind: EventStateChanged, State: StateCompleted})
}

// submitExpiredOnLoad records the terminal transition of a session whose time
// ran out while the candidate was away. The view is terminal either way.
func (c *Controller) submitExpiredOnLoad() {
	c.mu.Lock()
	entries := c.entriesLocked()
	c.mu.Unlock()

	c.goBackground(func(bgCtx context.Context) {
		callCtx, cancel := context.WithTimeout(bgCtx, c.requestTimeout)
		defer cancel()
		if _, err := c.api.Submit(callCtx, c.token, entries); err != nil {
			c.log.Warn().Err(err).Msg("Submission of expired session failed")
		}
	})
}

// SetAnswer records r for questionID and schedules its autosave.
// Multiple-choice questions accept a single value as a one-element selection.
// The capture happens under the state lock, so a submission either carries
// the answer or the call fails with ErrNotInProgress.
func (c *Controller) SetAnswer(questionID string, r model.Response) error {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	i, ok := c.byID[questionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	r, err := fitResponse(&c.session.Questions[i], r)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	changed := c.store.Capture(questionID, r)
	c.mu.Unlock()

	// Status callbacks may call back into the controller.
	if changed {
		c.pipeline.Schedule(questionID, r)
	}
	return nil
}

// ClearAnswer removes the answer to questionID.
func (c *Controller) ClearAnswer(questionID string) error {
	c.mu.Lock()
	i, ok := c.byID[questionID]
	var multi bool
	if ok {
		multi = c.session.Questions[i].Type == model.QuestionTypeMultipleChoice
	}
	c.mu.Unlock()

	if multi {
		return c.SetAnswer(questionID, model.MultiResponse())
	}
	return c.SetAnswer(questionID, model.TextResponse(""))
}

func fitResponse(q *model.AssessmentQuestion, r model.Response) (model.Response, error) {
	if q.Type == model.QuestionTypeMultipleChoice {
		if !r.Multi {
			if r.Value == "" {
				r = model.MultiResponse()
			} else {
				r = model.MultiResponse(r.Value)
			}
		} else {
			r = model.MultiResponse(r.Values...)
		}
		for _, id := range r.Values {
			if !q.HasOption(id) {
				return r, fmt.Errorf("%w: unknown option %q", ErrInvalidResponse, id)
			}
		}
		return r, nil
	}

	if r.Multi {
		return r, fmt.Errorf("%w: %s takes a single value", ErrInvalidResponse, q.Type)
	}
	if q.Type.IsChoice() && r.Value != "" && !q.HasOption(r.Value) {
		return r, fmt.Errorf("%w: unknown option %q", ErrInvalidResponse, r.Value)
	}
	return r, nil
}

// ToggleFlag flips the review flag of questionID.
func (c *Controller) ToggleFlag(questionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return false, ErrNotInProgress
	}
	if _, ok := c.byID[questionID]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	return c.store.ToggleFlag(questionID), nil
}

// Next moves to the following question, staying on the last one.
func (c *Controller) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.navigableLocked() && c.index < len(c.session.Questions)-1 {
		c.index++
	}
	return c.index
}

// Prev moves to the preceding question, staying on the first one.
func (c *Controller) Prev() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.navigableLocked() && c.index > 0 {
		c.index--
	}
	return c.index
}

// GoTo jumps to the question at index.
func (c *Controller) GoTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.navigableLocked() {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(c.session.Questions) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	c.index = index
	return nil
}

func (c *Controller) navigableLocked() bool {
	return c.state == StateInProgress || c.state == StateSubmitting
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		SessionID:    c.session.ID,
		Title:        c.session.Title,
		Index:        c.index,
		Total:        len(c.session.Questions),
		SaveStatus:   c.pipeline.Status(),
		Answered:     c.store.Len(),
		FlaggedCount: len(c.store.Flagged()),
		Notice:       c.notice,
		Error:        c.errMessage,
	}

	switch c.state {
	case StateReady:
		s.Remaining = int(c.budget / time.Second)
	case StateInProgress, StateSubmitting:
		s.Remaining = c.clock.Remaining(c.now())
	}

	if c.navigableLocked() && c.index < len(c.session.Questions) {
		q := c.session.Questions[c.index]
		s.Question = &q
		if r, ok := c.store.Get(q.ID); ok {
			s.Answer = &r
		}
		s.Flagged = c.store.IsFlagged(q.ID)
	}
	return s
}

// Questions returns the canonical questions of the loaded session.
func (c *Controller) Questions() []model.AssessmentQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.AssessmentQuestion(nil), c.session.Questions...)
}

// Close tears the session down: the countdown stops and pending autosaves
// are cancelled. Background calls in flight are cancelled too.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.teardownLocked()
	c.mu.Unlock()
	c.bgCancel()
}

// Wait blocks until background calls have returned.
func (c *Controller) Wait() {
	c.bg.Wait()
}

func (c *Controller) teardownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
	}
	c.pipeline.Stop()
}

func (c *Controller) entriesLocked() []model.AnswerEntry {
	order := make([]string, len(c.session.Questions))
	for i, q := range c.session.Questions {
		order[i] = q.ID
	}
	return c.store.Entries(order)
}

func (c *Controller) saveAnswer(ctx context.Context, questionID string, r model.Response) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return c.api.Save(ctx, c.token, questionID, r)
}

func (c *Controller) fail(message string) {
	c.mu.Lock()
	c.state = StateError
	c.errMessage = message
	c.mu.Unlock()
	c.emit(Event{Kind: EventStateChanged, State: StateError})
}

func (c *Controller) setNotice(message string) {
	c.mu.Lock()
	c.notice = message
	c.mu.Unlock()
	c.emit(Event{Kind: EventNotice, Message: message})
}

// goBackground runs fn until it returns or Close cancels ctx. Each API call
// inside fn carries its own requestTimeout.
func (c *Controller) goBackground(fn func(ctx context.Context)) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(c.bgCtx)
	}()
}

func (c *Controller) emit(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}
