package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunInvokesJobImmediately(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	s := New(Job{
		Name:     "count",
		Interval: time.Hour,
		Run: func(context.Context) {
			runs.Add(1)
			cancel()
		},
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("expected one immediate run before any tick, got %d", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	s := New(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) {
			if runs.Add(1) >= 3 {
				cancel()
			}
		},
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if got := runs.Load(); got < 3 {
		t.Errorf("expected at least 3 runs, got %d", got)
	}
}

func TestRunMultipleJobs(t *testing.T) {
	var a, b atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(
		Job{Name: "a", Interval: time.Hour, Run: func(context.Context) { a.Add(1) }},
		Job{Name: "b", Interval: time.Hour, Run: func(context.Context) { b.Add(1) }},
	)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for (a.Load() == 0 || b.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if a.Load() == 0 || b.Load() == 0 {
		t.Errorf("expected both jobs to run at least once, got a=%d b=%d", a.Load(), b.Load())
	}
}
