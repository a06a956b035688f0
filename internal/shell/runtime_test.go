package shell

import (
	"testing"
	"time"
)

func TestSignalRuntimeCloseUnblocksRun(t *testing.T) {
	rt := NewSignalRuntime()
	if err := rt.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	fired := make(chan struct{}, 1)
	rt.OnCloseRequested(func() { fired <- struct{}{} })

	done := make(chan error, 1)
	go func() { done <- rt.Run() }()

	time.Sleep(50 * time.Millisecond)
	rt.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	select {
	case <-fired:
	default:
		t.Fatal("close callback never fired")
	}
}

func TestSignalRuntimeCloseIsIdempotent(t *testing.T) {
	rt := NewSignalRuntime()
	count := 0
	rt.OnCloseRequested(func() { count++ })
	rt.Close()
	rt.Close()
	if count != 1 {
		t.Fatalf("close callback fired %d times", count)
	}
}

func TestSignalRuntimeNilCallbackIgnored(t *testing.T) {
	rt := NewSignalRuntime()
	rt.OnCloseRequested(nil)
	rt.Close() // must not panic
}
