// Package breaker implements the circuit breaker described in the design's
// component B: a scoped guard around a protected call with closed / open /
// half-open states. Grounded algorithmically on the embedded circuit
// breaker in the teacher's internal/intelligence/common/batch.go (which
// gates half-open admission with a single-permit counter to guarantee
// exactly one probe), but rebuilt around a sync.Mutex rather than atomics
// per this design's concurrency model, and exposed as a standalone
// component rather than nested inside a batch processor.
package breaker

import (
	"sync"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ExpectedErrorFunc reports whether err should count as a breaker failure.
// Errors for which this returns false (e.g. a caller cancellation) pass
// through without affecting the breaker's state.
type ExpectedErrorFunc func(err error) bool

// AlwaysExpected treats every non-nil error as a breaker failure.
func AlwaysExpected(err error) bool { return err != nil }

// Breaker guards a protected call. All state transitions occur under mu;
// Execute is the only entry point that calls into user code.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration
	expectedError    ExpectedErrorFunc

	state            State
	consecutiveFails int
	lastFailureTime  time.Time
	probeOutstanding bool

	log       logging.Logger
	version   string // label used in logging/metrics only
	onChange  func(version, newState string)
}

// OnTransition registers fn to be called after every state transition, under
// mu, with the breaker's version label and the new state's string form. It
// is the hook metrics.ServerMetrics.RecordBreakerTransition is wired through
// by callers that construct a Breaker per model version.
func (b *Breaker) OnTransition(fn func(version, newState string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// New constructs a Breaker. version is carried purely for observability
// (log fields, metric labels) and has no effect on behavior.
func New(version string, failureThreshold int, recoveryTimeout time.Duration, expectedError ExpectedErrorFunc, log logging.Logger) *Breaker {
	if expectedError == nil {
		expectedError = AlwaysExpected
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		expectedError:    expectedError,
		state:            Closed,
		log:              log,
		version:          version,
	}
}

// State returns the breaker's current state under the mutex.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the breaker currently admits a call, observing the
// outcome to drive the state machine. It returns errors.BreakerOpen without
// calling fn when the breaker refuses admission; otherwise it returns
// exactly fn's own result — the breaker never swallows the underlying
// error.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return errors.BreakerOpen()
	}

	err := fn()
	b.observe(err)
	return err
}

// admit decides whether a call may proceed, advancing open -> half-open on
// timeout expiry and granting at most one outstanding half-open probe.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true

	case Open:
		if time.Since(b.lastFailureTime) < b.recoveryTimeout {
			return false
		}
		b.transition(Open, HalfOpen)
		b.probeOutstanding = true
		return true

	case HalfOpen:
		// Exactly one caller may be the outstanding probe; everyone else is
		// refused as if the breaker were still open.
		if b.probeOutstanding {
			return false
		}
		b.probeOutstanding = true
		return true
	}
	return false
}

// observe records the outcome of an admitted call and applies the state
// transition it implies.
func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := b.expectedError(err)

	switch b.state {
	case HalfOpen:
		b.probeOutstanding = false
		if failed {
			b.lastFailureTime = time.Now()
			b.transition(HalfOpen, Open)
		} else {
			b.consecutiveFails = 0
			b.transition(HalfOpen, Closed)
		}

	case Closed:
		if failed {
			b.consecutiveFails++
			if b.consecutiveFails >= b.failureThreshold {
				b.lastFailureTime = time.Now()
				b.transition(Closed, Open)
			}
		} else {
			b.consecutiveFails = 0
		}

	case Open:
		// A call should not be admitted while Open; nothing to observe.
	}
}

// transition assumes mu is held and updates state, logging at the level
// the design specifies: Warn for transitions into Open, Info otherwise.
func (b *Breaker) transition(from, to State) {
	b.state = to

	fields := []logging.Field{
		logging.String("version", b.version),
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	}
	if to == Open {
		b.log.Warn("circuit breaker state change", fields...)
	} else {
		b.log.Info("circuit breaker state change", fields...)
	}

	if b.onChange != nil {
		b.onChange(b.version, to.String())
	}
}
