package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/autosave"
)

const (
	DefaultSubmitRetries    = 3
	DefaultSubmitRetryDelay = 2 * time.Second
	DefaultRequestTimeout   = 15 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithNow injects the time source used for every remaining-time computation.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTickInterval overrides the one-second countdown tick.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithAutosaveDelay sets the autosave debounce window.
func WithAutosaveDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.autosaveOpts = append(c.autosaveOpts, autosave.WithDelay(d))
	}
}

// WithSavedDisplay sets how long the "saved" status stays visible.
func WithSavedDisplay(d time.Duration) Option {
	return func(c *Controller) {
		c.autosaveOpts = append(c.autosaveOpts, autosave.WithSavedFor(d))
	}
}

// WithSubmitRetries sets how often a timer-triggered submission is retried.
func WithSubmitRetries(n int, delay time.Duration) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.submitRetries = n
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithRequestTimeout bounds each background API call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithEventHandler registers fn to receive events. fn runs on controller
// goroutines and must not block.
func WithEventHandler(fn func(Event)) Option {
	return func(c *Controller) {
		c.onEvent = fn
	}
}
