// Package resilience provides fault-tolerance primitives shared by the
// Stagio platform services, currently a circuit breaker used to guard
// remote dependencies such as the shared Redis cache tier.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCircuitOpen is returned when a call is rejected without invoking
	// the wrapped operation, either because the breaker is open or because
	// the half-open trial budget is exhausted. Callers must distinguish it
	// from operation failures (errors.Is) so they can fall back instead of
	// retrying blindly.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrCallTimeout is returned when a wrapped operation exceeds the
	// configured per-call timeout. It counts as a failure.
	ErrCallTimeout = errors.New("resilience: operation timed out")
)

// State represents the state of a circuit breaker.
type State int32

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines configuration for the circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state before the circuit opens.
	FailureThreshold int

	// Timeout is how long the circuit stays open before the next call is
	// allowed through as a half-open trial.
	Timeout time.Duration

	// HalfOpenMaxCalls bounds the number of concurrent trial calls admitted
	// while half-open. Calls beyond the budget are rejected.
	HalfOpenMaxCalls int

	// SuccessThreshold is the number of consecutive trial successes needed
	// in the half-open state to close the circuit again.
	SuccessThreshold int

	// CallTimeout bounds a single wrapped operation. Zero disables the
	// per-call timeout. An expired call counts as a failure.
	CallTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 2,
		CallTimeout:      5 * time.Second,
	}
}

// Metrics is a point-in-time snapshot of breaker counters.
type Metrics struct {
	State               State
	Calls               int64 // total Execute invocations, rejected or not
	Rejections          int64 // fast-fail rejections without running the op
	Failures            int64 // operation failures (including timeouts)
	Successes           int64 // operation successes
	ConsecutiveFailures int   // current closed-state failure streak
	TimesOpened         int64 // transitions into OPEN
	TimesHalfOpened     int64 // transitions into HALF_OPEN
	TimesClosed         int64 // transitions into CLOSED (excluding initial)
}

// CircuitBreaker implements the circuit breaker pattern. It is policy, not
// retry logic: it never retries the wrapped operation.
type CircuitBreaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int // consecutive failures while closed
	successes int // consecutive successes while half-open
	inflight  int // admitted trial calls while half-open
	openedAt  time.Time

	calls           int64
	rejections      int64
	failureTotal    int64
	successTotal    int64
	timesOpened     int64
	timesHalfOpened int64
	timesClosed     int64
}

// New creates a circuit breaker with the given configuration. Zero or
// negative thresholds fall back to the defaults.
func New(cfg Config) *CircuitBreaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Execute runs op through the breaker. It returns op's error unchanged for
// admitted calls, or ErrCircuitOpen when the call is rejected without
// invoking op. When CallTimeout is set and expires, ErrCallTimeout is
// returned and the call counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cb.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.CallTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- op(callCtx)
	}()

	select {
	case err := <-done:
		cb.settle(err == nil)
		return err
	case <-callCtx.Done():
		cb.settle(false)
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ErrCallTimeout
		}
		return callCtx.Err()
	}
}

// admit decides whether a call may proceed, performing the OPEN→HALF_OPEN
// transition when the open timeout has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.calls++

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Timeout {
			cb.rejections++
			return ErrCircuitOpen
		}
		cb.toHalfOpen()
		cb.inflight++
		return nil

	default: // StateHalfOpen
		if cb.inflight >= cb.cfg.HalfOpenMaxCalls {
			cb.rejections++
			return ErrCircuitOpen
		}
		cb.inflight++
		return nil
	}
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inflight > 0 {
		cb.inflight--
	}

	if ok {
		cb.successTotal++
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.toClosed()
			}
		}
		return
	}

	cb.failureTotal++
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

// toOpen, toHalfOpen and toClosed require cb.mu to be held.

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
	cb.inflight = 0
	cb.timesOpened++
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successes = 0
	cb.inflight = 0
	cb.timesHalfOpened++
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.inflight = 0
	cb.timesClosed++
}

// effectiveState requires cb.mu to be held. An open breaker whose timeout
// has elapsed reports HALF_OPEN, since the next call will be admitted as a
// trial; gating on the raw state would starve the breaker of that call.
func (cb *CircuitBreaker) effectiveState() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		return StateHalfOpen
	}
	return cb.state
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.effectiveState()
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Metrics{
		State:               cb.effectiveState(),
		Calls:               cb.calls,
		Rejections:          cb.rejections,
		Failures:            cb.failureTotal,
		Successes:           cb.successTotal,
		ConsecutiveFailures: cb.failures,
		TimesOpened:         cb.timesOpened,
		TimesHalfOpened:     cb.timesHalfOpened,
		TimesClosed:         cb.timesClosed,
	}
}

// Reset manually closes the circuit. Operational escape hatch.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toClosed()
}
