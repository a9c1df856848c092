// Package autosave persists answers in the background with a per-question
// debounce and exposes a single candidate-visible save status.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	DefaultDelay    = time.Second
	DefaultSavedFor = 2 * time.Second
)

// Saver persists one question's latest response.
type Saver interface {
	Save(ctx context.Context, questionID string, r model.Response) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, questionID string, r model.Response) error

func (f SaverFunc) Save(ctx context.Context, questionID string, r model.Response) error {
	return f(ctx, questionID, r)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.delay = d
		}
	}
}

// WithSavedFor sets how long "saved" is shown before reverting to idle.
func WithSavedFor(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.savedFor = d
		}
	}
}

// WithLogger attaches a logger for save failures.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log.With().Str("component", "autosave").Logger()
	}
}

// OnStatus registers a callback invoked after every status change. It runs on
// the goroutine that caused the change and must not block.
func OnStatus(fn func(model.SaveStatus)) Option {
	return func(p *Pipeline) {
		p.onStatus = fn
	}
}

// questionState tracks one question's debounce timer and in-flight save. At
// most one save per question is in flight; a value that becomes due meanwhile
// waits in queued and is sent as soon as the previous call returns.
type questionState struct {
	timer    *time.Timer
	seq      uint64
	value    model.Response
	inFlight bool
	queued   *model.Response
}

func (st *questionState) outstanding() bool {
	return st.timer != nil || st.inFlight || st.queued != nil
}

// Pipeline is inactive until Enable and permanently inactive after Stop.
type Pipeline struct {
	saver    Saver
	delay    time.Duration
	savedFor time.Duration
	log      zerolog.Logger
	onStatus func(model.SaveStatus)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	enabled   bool
	stopped   bool
	seq       uint64
	questions map[string]*questionState
	status    model.SaveStatus
	statusGen uint64
	revert    *time.Timer
}

// New builds a Pipeline writing through saver.
func New(saver Saver, opts ...Option) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		saver:     saver,
		delay:     DefaultDelay,
		savedFor:  DefaultSavedFor,
		log:       zerolog.Nop(),
		ctx:       ctx,
		cancel:    cancel,
		questions: make(map[string]*questionState),
		status:    model.SaveStatusIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enable allows Schedule to take effect. It has no effect after Stop.
func (p *Pipeline) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.enabled = true
	}
}

// Schedule (re)starts the debounce timer of questionID with r as the value to
// send. It reports false when the pipeline is not accepting saves.
func (p *Pipeline) Schedule(questionID string, r model.Response) bool {
	p.mu.Lock()
	if !p.enabled || p.stopped {
		p.mu.Unlock()
		return false
	}

	st, ok := p.questions[questionID]
	if !ok {
		st = &questionState{}
		p.questions[questionID] = st
	}
	if st.timer != nil {
		st.timer.Stop()
	}

	p.seq++
	seq := p.seq
	st.seq = seq
	st.value = r
	st.timer = time.AfterFunc(p.delay, func() { p.fire(questionID, seq) })

	status := p.setStatusLocked(model.SaveStatusSaving)
	p.mu.Unlock()

	p.notify(status)
	return true
}

func (p *Pipeline) fire(questionID string, seq uint64) {
	p.mu.Lock()
	st, ok := p.questions[questionID]
	if !ok || st.seq != seq || st.timer == nil || p.stopped {
		p.mu.Unlock()
		return
	}
	st.timer = nil
	value := st.value
	if st.inFlight {
		st.queued = &value
		p.mu.Unlock()
		return
	}
	st.inFlight = true
	p.mu.Unlock()

	p.send(questionID, value)
}

func (p *Pipeline) send(questionID string, value model.Response) {
	for {
		err := p.saver.Save(p.ctx, questionID, value)

		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		st := p.questions[questionID]

		var status model.SaveStatus
		if err != nil {
			p.log.Warn().Err(err).Str("question_id", questionID).Msg("Autosave failed")
			status = p.setStatusLocked(model.SaveStatusError)
		} else if p.outstandingLocked(st) {
			status = p.setStatusLocked(model.SaveStatusSaving)
		} else {
			status = p.setStatusLocked(model.SaveStatusSaved)
			p.scheduleRevertLocked()
		}

		if st.queued != nil {
			value = *st.queued
			st.queued = nil
			p.mu.Unlock()
			p.notify(status)
			continue
		}

		st.inFlight = false
		if !st.outstanding() {
			delete(p.questions, questionID)
		}
		p.mu.Unlock()
		p.notify(status)
		return
	}
}

// outstandingLocked reports whether any save other than the one just finished
// for current is still pending.
func (p *Pipeline) outstandingLocked(current *questionState) bool {
	for _, st := range p.questions {
		if st == current {
			if st.timer != nil || st.queued != nil {
				return true
			}
			continue
		}
		if st.outstanding() {
			return true
		}
	}
	return false
}

func (p *Pipeline) scheduleRevertLocked() {
	if p.revert != nil {
		p.revert.Stop()
	}
	gen := p.statusGen
	p.revert = time.AfterFunc(p.savedFor, func() {
		p.mu.Lock()
		if p.stopped || p.statusGen != gen || p.status != model.SaveStatusSaved {
			p.mu.Unlock()
			return
		}
		status := p.setStatusLocked(model.SaveStatusIdle)
		p.mu.Unlock()
		p.notify(status)
	})
}

// setStatusLocked records s and returns it for notification. It returns the
// empty status when nothing changed.
func (p *Pipeline) setStatusLocked(s model.SaveStatus) model.SaveStatus {
	if p.status == s {
		if s == model.SaveStatusSaved {
			p.statusGen++
		}
		return ""
	}
	p.status = s
	p.statusGen++
	return s
}

func (p *Pipeline) notify(s model.SaveStatus) {
	if s != "" && p.onStatus != nil {
		p.onStatus(s)
	}
}

// Status returns the current save status.
func (p *Pipeline) Status() model.SaveStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Pending returns the number of questions with a scheduled, queued or
// in-flight save.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, st := range p.questions {
		if st.outstanding() {
			n++
		}
	}
	return n
}

// Stop cancels every pending timer and in-flight call and rejects further
// schedules. Results of calls already in flight are discarded.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.enabled = false

	for _, st := range p.questions {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.queued = nil
	}
	if p.revert != nil {
		p.revert.Stop()
	}
	p.cancel()
}
