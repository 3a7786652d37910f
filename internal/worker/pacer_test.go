package worker

import (
	"context"
	"testing"
	"time"
)

func TestPacer_Between(t *testing.T) {
	var slept []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	defer func() { sleepFunc = orig }()

	p := NewPacer(2*time.Second, 0)
	if err := p.Between(context.Background()); err != nil {
		t.Fatalf("Between failed: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("expected one 2s sleep, got %v", slept)
	}
}

func TestPacer_BetweenZeroInterval(t *testing.T) {
	called := false
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		called = true
		return nil
	}
	defer func() { sleepFunc = orig }()

	p := NewPacer(0, 0)
	if err := p.Between(context.Background()); err != nil {
		t.Fatalf("Between failed: %v", err)
	}
	if called {
		t.Error("expected no sleep for zero interval")
	}
}

func TestPacer_BetweenCancelled(t *testing.T) {
	p := NewPacer(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.Between(ctx); err == nil {
		t.Error("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Between did not return promptly after cancellation")
	}
}

func TestPacer_RealSleep(t *testing.T) {
	p := NewPacer(30*time.Millisecond, 0)
	start := time.Now()
	if err := p.Between(context.Background()); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Errorf("expected delay >= 30ms, got %v", time.Since(start))
	}
}

func TestPacer_WaitUnlimited(t *testing.T) {
	p := NewPacer(0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
}

func TestPacer_WaitCeiling(t *testing.T) {
	p := NewPacer(0, 1) // 1 rps, burst 1
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	// Token consumed; the next one is ~1s away, beyond the deadline
	if err := p.Wait(ctx); err == nil {
		t.Error("expected second wait to exceed the deadline")
	}
}
