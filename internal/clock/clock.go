// Package clock derives an assessment's remaining time from the server-recorded
// start timestamp, so reloading the page never resets or pauses the timer.
package clock

import (
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	// DefaultQuestionLimit is the budget of a question that declares none.
	DefaultQuestionLimit = 120 * time.Second
	// FallbackBudget applies when the per-question budgets sum to zero.
	FallbackBudget = 1800 * time.Second
)

// TotalBudget sums the per-question time limits.
func TotalBudget(questions []model.AssessmentQuestion) time.Duration {
	var total time.Duration
	for _, q := range questions {
		if q.TimeLimit == nil {
			total += DefaultQuestionLimit
			continue
		}
		if *q.TimeLimit > 0 {
			total += time.Duration(*q.TimeLimit) * time.Second
		}
	}
	if total <= 0 {
		return FallbackBudget
	}
	return total
}

// Clock is an immutable description of a running assessment's time window.
type Clock struct {
	StartedAt time.Time
	Budget    time.Duration
	// Expiry is the optional hard deadline of the invitation.
	Expiry *time.Time
}

// New builds a Clock anchored at startedAt.
func New(startedAt time.Time, budget time.Duration, expiry *time.Time) Clock {
	return Clock{StartedAt: startedAt, Budget: budget, Expiry: expiry}
}

// Remaining returns the whole seconds left at now, never negative.
func (c Clock) Remaining(now time.Time) int {
	elapsed := int64(now.Sub(c.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := int64(c.Budget/time.Second) - elapsed

	if c.Expiry != nil {
		untilExpiry := int64(c.Expiry.Sub(now) / time.Second)
		if untilExpiry < remaining {
			remaining = untilExpiry
		}
	}

	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// Expired reports whether no time remains at now.
func (c Clock) Expired(now time.Time) bool {
	return c.Remaining(now) <= 0
}

// Deadline is the instant the clock reaches zero.
func (c Clock) Deadline() time.Time {
	d := c.StartedAt.Add(c.Budget)
	if c.Expiry != nil && c.Expiry.Before(d) {
		return *c.Expiry
	}
	return d
}
