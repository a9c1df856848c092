package clock

import (
	"context"
	"sync"
	"time"
)

// Countdown ticks a Clock at a fixed interval until it reaches zero.
type Countdown struct {
	clock    Clock
	interval time.Duration
	now      func() time.Time

	onTick   func(remaining int)
	onExpire func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	expired bool
}

// CountdownOption configures a Countdown.
type CountdownOption func(*Countdown)

// WithInterval overrides the one-second tick.
func WithInterval(d time.Duration) CountdownOption {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithNow injects the time source.
func WithNow(now func() time.Time) CountdownOption {
	return func(c *Countdown) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCountdown prepares a countdown. onTick receives the remaining seconds on
// every tick; onExpire runs exactly once when the clock reaches zero.
func NewCountdown(c Clock, onTick func(int), onExpire func(), opts ...CountdownOption) *Countdown {
	cd := &Countdown{
		clock:    c,
		interval: time.Second,
		now:      time.Now,
		onTick:   onTick,
		onExpire: onExpire,
	}
	for _, opt := range opts {
		opt(cd)
	}
	return cd
}

// Start launches the ticking goroutine. Calling Start twice is a no-op.
func (cd *Countdown) Start() {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if cd.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cd.cancel = cancel
	cd.done = make(chan struct{})
	go cd.run(ctx, cd.done)
}

func (cd *Countdown) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(cd.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := cd.clock.Remaining(cd.now())
			if cd.onTick != nil {
				cd.onTick(remaining)
			}
			if remaining <= 0 {
				cd.fireExpire()
				return
			}
		}
	}
}

func (cd *Countdown) fireExpire() {
	cd.mu.Lock()
	if cd.expired {
		cd.mu.Unlock()
		return
	}
	cd.expired = true
	cd.mu.Unlock()

	if cd.onExpire != nil {
		cd.onExpire()
	}
}

// Stop halts ticking. It is safe to call Stop repeatedly, before Start, and
// from inside the tick or expiry callbacks.
func (cd *Countdown) Stop() {
	cd.mu.Lock()
	cancel := cd.cancel
	cd.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed when the ticking goroutine exits. It is nil before Start.
func (cd *Countdown) Done() <-chan struct{} {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.done
}

// Remaining reports the clock's remaining seconds now.
func (cd *Countdown) Remaining() int {
	return cd.clock.Remaining(cd.now())
}
