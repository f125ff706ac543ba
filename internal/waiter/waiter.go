// Package waiter polls a lookup until it yields an accepted value or a time
// budget runs out.
package waiter

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/danielolaszy/lqasync/internal/logging"
)

// Defaults match the board automation's typical turnaround.
const (
	DefaultInterval = 3 * time.Second
	DefaultTimeout  = 2 * time.Minute
)

var (
	errNotReady = errors.New("value not available yet")
	errTimedOut = errors.New("timed out")
)

// Clock tells the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// LookupFunc reads the current value. It must honour ctx, which carries the
// per-attempt deadline.
type LookupFunc func(ctx context.Context) (string, error)

// AcceptFunc reports whether a looked-up value is the one being waited for.
type AcceptFunc func(value string) bool

// Waiter polls on a fixed interval for at most a fixed duration. It keeps no
// state between Await calls.
type Waiter struct {
	interval       time.Duration
	timeout        time.Duration
	attemptTimeout time.Duration
	clock          Clock
	newTimer       func() backoff.Timer
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithClock replaces the wall clock used for elapsed-time bookkeeping.
func WithClock(c Clock) Option {
	return func(w *Waiter) {
		w.clock = c
	}
}

// WithTimer supplies the timer that paces attempts. Each Await call gets a
// fresh timer from newTimer.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(w *Waiter) {
		w.newTimer = newTimer
	}
}

// WithAttemptTimeout bounds a single lookup (default: the interval).
func WithAttemptTimeout(d time.Duration) Option {
	return func(w *Waiter) {
		if d > 0 {
			w.attemptTimeout = d
		}
	}
}

// New creates a waiter. Non-positive durations select the defaults.
func New(interval, timeout time.Duration, opts ...Option) *Waiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w := &Waiter{
		interval:       interval,
		timeout:        timeout,
		attemptTimeout: interval,
		clock:          systemClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Interval returns the polling interval.
func (w *Waiter) Interval() time.Duration { return w.interval }

// Timeout returns the overall time budget.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Await calls lookup immediately and then once per interval until accept
// returns true for a value, the time budget is spent, or ctx is done. Lookup
// errors are logged and polling continues. The boolean is false when no
// accepted value was seen; that is an expected outcome, not an error.
func (w *Waiter) Await(ctx context.Context, lookup LookupFunc, accept AcceptFunc) (string, bool) {
	start := w.clock.Now()
	attempt := 0
	var result string

	operation := func() error {
		budget := w.attemptBudget(w.clock.Now().Sub(start))
		if attempt > 0 && budget <= 0 {
			return backoff.Permanent(errTimedOut)
		}
		attempt++

		actx, cancel := context.WithTimeout(ctx, budget)
		value, err := lookup(actx)
		cancel()

		switch {
		case err != nil:
			logging.Warn("lookup failed",
				"attempt", attempt,
				"error", err)
		case accept(value):
			result = value
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if w.clock.Now().Sub(start) >= w.timeout {
			return backoff.Permanent(errTimedOut)
		}
		return errNotReady
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(w.interval), ctx)

	var timer backoff.Timer
	if w.newTimer != nil {
		timer = w.newTimer()
	}

	if err := backoff.RetryNotifyWithTimer(operation, b, nil, timer); err != nil {
		logging.Debug("wait finished without a value",
			"attempts", attempt,
			"elapsed", w.clock.Now().Sub(start),
			"reason", err)
		return "", false
	}

	logging.Debug("wait resolved",
		"attempts", attempt,
		"elapsed", w.clock.Now().Sub(start))
	return result, true
}

// attemptBudget bounds the next lookup so it cannot run past the overall
// timeout.
func (w *Waiter) attemptBudget(elapsed time.Duration) time.Duration {
	return min(w.attemptTimeout, w.timeout-elapsed)
}

var httpsPattern = regexp.MustCompile(`https://[^\s]+`)

// ExtractLink reads a URL from a link column. The structured value's "url"
// field wins; otherwise the first https:// token of the display text is used.
func ExtractLink(raw, text string) string {
	if raw != "" && gjson.Valid(raw) {
		if u := gjson.Get(raw, "url").String(); u != "" {
			return u
		}
	}
	return httpsPattern.FindString(text)
}

// Contains accepts values containing marker.
func Contains(marker string) AcceptFunc {
	return func(value string) bool {
		return value != "" && strings.Contains(value, marker)
	}
}
