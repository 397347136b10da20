package app

import (
	"sync"
	"time"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the pipeline.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Lifecycle manages the state machine for the pipeline.
// Valid transitions are Idle → Running → Draining → Stopped. Stopped is terminal.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	stopped      chan struct{}
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager in the Idle state.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		stopped:      make(chan struct{}),
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	switch oldState {
	case StateIdle:
		if newState != StateRunning {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	case StateRunning:
		if newState != StateDraining {
			l.mu.Unlock()
			return domain.ErrAlreadyRunning
		}
	case StateDraining:
		if newState != StateStopped {
			l.mu.Unlock()
			return domain.ErrAlreadyRunning
		}
	case StateStopped:
		l.mu.Unlock()
		return domain.ErrNotRunning
	}

	l.state = newState
	if newState == StateStopped {
		close(l.stopped)
	}
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle
}

// CanStop returns true if a shutdown signal would have an effect.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning
}

// Stopped returns a channel that is closed once the Stopped state is reached.
func (l *Lifecycle) Stopped() <-chan struct{} {
	return l.stopped
}

// WaitWithTimeout waits for the Stopped state with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-l.stopped:
		return nil
	case <-t.C:
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
