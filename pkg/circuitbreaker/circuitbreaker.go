package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type Config struct {
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold int
	// SuccessThreshold successes while half-open close it again.
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// Breaker fails calls fast after repeated gateway errors. It never retries.
type Breaker struct {
	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	reopenDeadline time.Time
	cfg            Config
	now            func() time.Time
}

var ErrOpen = errors.New("circuit open")

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	return &Breaker{cfg: cfg, now: time.Now}
}

func (cb *Breaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Before(cb.reopenDeadline) {
			return ErrOpen
		}
		cb.transitionTo(StateHalfOpen)
	}

	return nil
}

// Record feeds the outcome of an allowed call back into the breaker.
func (cb *Breaker) Record(err error) {
	if err != nil {
		cb.markFailure()
		return
	}
	cb.markSuccess()
}

func (cb *Breaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *Breaker) markSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.transitionTo(StateClosed)
		}
		return
	}

	cb.transitionTo(StateClosed)
}

func (cb *Breaker) markFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// a single failed probe reopens immediately
	if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
		return
	}

	cb.failureCount++
	if cb.failureCount >= cb.cfg.FailureThreshold {
		cb.transitionTo(StateOpen)
	}
}

func (cb *Breaker) transitionTo(state State) {
	cb.state = state
	cb.failureCount = 0
	cb.successCount = 0
	if state == StateOpen {
		cb.reopenDeadline = cb.now().Add(cb.cfg.OpenTimeout)
	}
}
