package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"dpddns/ddns"
)

type fakeCycle struct {
	err  error
	runs int

	// cancel is called once runs reaches stopAfter
	cancel    context.CancelFunc
	stopAfter int
}

func (f *fakeCycle) Run(context.Context) (ddns.State, error) {
	f.runs++
	if f.cancel != nil && f.runs >= f.stopAfter {
		f.cancel()
	}
	if f.err != nil {
		return ddns.Failed, f.err
	}
	return ddns.Done, nil
}

func TestRunOnceExitCode(t *testing.T) {
	ok := &fakeCycle{}
	if got := run(context.Background(), ok, 0); got != 0 {
		t.Fatalf("exit code on done = %d, want 0", got)
	}

	failed := &fakeCycle{err: errors.New("status 7")}
	if got := run(context.Background(), failed, 0); got != 1 {
		t.Fatalf("exit code on failure = %d, want 1", got)
	}

	if ok.runs != 1 || failed.runs != 1 {
		t.Fatalf("runs = %d/%d, want a single cycle each", ok.runs, failed.runs)
	}
}

func TestRunPeriodicUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeCycle{err: errors.New("transport"), cancel: cancel, stopAfter: 3}

	done := make(chan int, 1)
	go func() { done <- run(ctx, f, 10*time.Millisecond) }()

	select {
	case got := <-done:
		if got != 0 {
			t.Fatalf("exit code = %d, want 0", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("periodic run did not stop after cancel")
	}

	if f.runs < 3 {
		t.Fatalf("runs = %d, want failures retried until cancel", f.runs)
	}
}
