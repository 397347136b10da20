package app

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_NextWithinJitter(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, base := range want {
		got := b.Next()
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		if got < lo || got > hi {
			t.Errorf("Next() #%d = %v, want within [%v, %v]", i, got, lo, hi)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := newBackoff(100*time.Millisecond, time.Second)
	b.Next()
	b.Next()

	if b.Current() != 400*time.Millisecond {
		t.Fatalf("Current() = %v, want 400ms", b.Current())
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("Current() after Reset = %v, want 100ms", b.Current())
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := newBackoff(0, 0)
	if b.Current() != DefaultBackoffInitial {
		t.Errorf("Current() = %v, want %v", b.Current(), DefaultBackoffInitial)
	}
	if b.max != DefaultBackoffInitial {
		t.Errorf("max = %v, want %v", b.max, DefaultBackoffInitial)
	}
}

func TestBackoff_WaitCanceled(t *testing.T) {
	b := newBackoff(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait() did not return promptly on canceled context")
	}
}

func TestBackoff_WaitElapses(t *testing.T) {
	b := newBackoff(time.Millisecond, time.Millisecond)
	if err := b.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}
