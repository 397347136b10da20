package app

import (
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	if l == nil {
		t.Fatal("NewLifecycle returned nil")
	}
	if l.State() != StateIdle {
		t.Errorf("initial state = %v, want StateIdle", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateRunning, "Running"},
		{StateDraining, "Draining"},
		{StateStopped, "Stopped"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_TransitionTo_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"idle to running", StateIdle, StateRunning},
		{"running to draining", StateRunning, StateDraining},
		{"draining to stopped", StateDraining, StateStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.from

			if err := l.TransitionTo(tt.to, "test"); err != nil {
				t.Fatalf("TransitionTo() error = %v", err)
			}
			if l.State() != tt.to {
				t.Errorf("state = %v after transition, want %v", l.State(), tt.to)
			}
		})
	}
}

func TestLifecycle_TransitionTo_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"idle to draining", StateIdle, StateDraining, domain.ErrNotRunning},
		{"idle to stopped", StateIdle, StateStopped, domain.ErrNotRunning},
		{"running to running", StateRunning, StateRunning, domain.ErrAlreadyRunning},
		{"running to stopped", StateRunning, StateStopped, domain.ErrAlreadyRunning},
		{"draining to running", StateDraining, StateRunning, domain.ErrAlreadyRunning},
		{"draining to draining", StateDraining, StateDraining, domain.ErrAlreadyRunning},
		{"stopped to running", StateStopped, StateRunning, domain.ErrNotRunning},
		{"stopped to idle", StateStopped, StateIdle, domain.ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.from

			err := l.TransitionTo(tt.to, "test")

			if err != tt.wantErr {
				t.Errorf("TransitionTo() error = %v, want %v", err, tt.wantErr)
			}
			// State should not change on invalid transition
			if l.State() != tt.from {
				t.Errorf("state changed to %v on invalid transition, want %v", l.State(), tt.from)
			}
		})
	}
}

func TestLifecycle_TransitionTo_EmitsEvents(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(&mockLogger{}, emitter)

	_ = l.TransitionTo(StateRunning, "start")
	_ = l.TransitionTo(StateDraining, "stop requested")
	_ = l.TransitionTo(StateStopped, "drained")

	events := emitter.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	if events[0].previous != StateIdle || events[0].current != StateRunning {
		t.Errorf("event 0: got %v->%v, want Idle->Running", events[0].previous, events[0].current)
	}
	if events[1].reason != "stop requested" {
		t.Errorf("event 1 reason = %q, want %q", events[1].reason, "stop requested")
	}
	if events[2].previous != StateDraining || events[2].current != StateStopped {
		t.Errorf("event 2: got %v->%v, want Draining->Stopped", events[2].previous, events[2].current)
	}
}

func TestLifecycle_CanStartCanStop(t *testing.T) {
	tests := []struct {
		state     State
		wantStart bool
		wantStop  bool
	}{
		{StateIdle, true, false},
		{StateRunning, false, true},
		{StateDraining, false, false},
		{StateStopped, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.state

			if got := l.CanStart(); got != tt.wantStart {
				t.Errorf("CanStart() = %v, want %v", got, tt.wantStart)
			}
			if got := l.CanStop(); got != tt.wantStop {
				t.Errorf("CanStop() = %v, want %v", got, tt.wantStop)
			}
		})
	}
}

func TestLifecycle_StoppedChannel(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	select {
	case <-l.Stopped():
		t.Fatal("Stopped() closed before reaching Stopped")
	default:
	}

	_ = l.TransitionTo(StateRunning, "test")
	_ = l.TransitionTo(StateDraining, "test")
	_ = l.TransitionTo(StateStopped, "test")

	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped() not closed after reaching Stopped")
	}
}

func TestLifecycle_WaitWithTimeout_Success(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	_ = l.TransitionTo(StateRunning, "test")
	_ = l.TransitionTo(StateDraining, "test")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = l.TransitionTo(StateStopped, "test")
	}()

	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
}

func TestLifecycle_WaitWithTimeout_Timeout(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	_ = l.TransitionTo(StateRunning, "test")

	err := l.WaitWithTimeout(10 * time.Millisecond)
	if err != domain.ErrShutdownTimeout {
		t.Errorf("WaitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}
}

func TestLifecycle_Concurrency(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	var wg sync.WaitGroup

	// Concurrent state reads
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.State()
				_ = l.CanStart()
				_ = l.CanStop()
			}
		}()
	}

	// Concurrent transitions; exactly one of each succeeds
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.TransitionTo(StateRunning, "test")
			_ = l.TransitionTo(StateDraining, "test")
			_ = l.TransitionTo(StateStopped, "test")
		}()
	}

	wg.Wait()

	if l.State() != StateStopped {
		t.Errorf("final state = %v, want Stopped", l.State())
	}
}
