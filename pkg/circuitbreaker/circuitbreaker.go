package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of a breaker
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls rejected immediately
	StateHalfOpen              // a few trial calls allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Config tunes the breaker
type Config struct {
	// consecutive failures that open the breaker
	FailureThreshold int
	// successes in half-open needed to close again
	SuccessThreshold int
	// how long the breaker stays open before trying half-open
	Timeout time.Duration
	// concurrent trial calls allowed while half-open
	HalfOpenMaxRequests int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker protects calls to one external dependency.
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	lastStateTime time.Time

	mu sync.Mutex
}

// NewCircuitBreaker creates a closed breaker. logger may be nil.
func NewCircuitBreaker(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	cb.lastStateTime = cb.now()
	return cb
}

// Execute runs fn unless the breaker is open. Failures of fn count towards
// opening the breaker; ErrCircuitBreakerOpen is returned without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastStateTime) >= cb.config.Timeout {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++

	switch cb.state {
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.successCount++
		cb.halfOpenCount--
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	prev := cb.state
	cb.state = s
	cb.lastStateTime = cb.now()
	cb.halfOpenCount = 0
	cb.successCount = 0
	if s == StateClosed {
		cb.failureCount = 0
	}
	if cb.logger != nil {
		cb.logger.Warn("Circuit breaker state changed",
			zap.String("breaker", cb.name),
			zap.String("from", prev.String()),
			zap.String("to", s.String()),
		)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failureCount = 0
}
