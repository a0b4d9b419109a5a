// Package guard puts a hard wall-clock ceiling on remote calls. Work runs on
// a small bounded worker pool; on timeout the call is abandoned, not
// cancelled, so an abandoned call may still complete server-side. Callers
// must treat Unknown as "may have happened", never as "definitely failed".
package guard

import (
	"fmt"
	"log/slog"
	"time"
)

type Outcome int

const (
	Success Outcome = iota
	Failure
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

type Result[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
}

func (r Result[T]) Succeeded() bool {
	return r.Outcome == Success
}

type Guard struct {
	slots chan struct{}
}

func New(workers int) *Guard {
	if workers <= 0 {
		workers = 4
	}
	return &Guard{slots: make(chan struct{}, workers)}
}

// Run executes fn on the pool and waits up to timeout for its result.
// Waiting for a free worker counts against the same timeout: a pool clogged
// with abandoned calls must not stall the event loop either.
func Run[T any](g *Guard, timeout time.Duration, label string, fn func() (T, error)) Result[T] {
	start := time.Now()

	type completion struct {
		value T
		err   error
	}
	done := make(chan completion, 1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g.slots <- struct{}{}:
	case <-timer.C:
		slog.Error("Timeout waiting for worker", "call", label, "timeout", timeout)
		return Result[T]{Outcome: Unknown, Err: fmt.Errorf("%s: no worker within %s", label, timeout)}
	}

	go func() {
		defer func() { <-g.slots }()
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		v, err := fn()
		done <- completion{value: v, err: err}
	}()

	select {
	case c := <-done:
		if c.err != nil {
			slog.Error("Guarded call failed", "call", label, "error", c.err)
			return Result[T]{Outcome: Failure, Err: c.err}
		}
		return Result[T]{Outcome: Success, Value: c.value}
	case <-timer.C:
		slog.Error("Guarded call abandoned on timeout", "call", label, "timeout", timeout, "elapsed", time.Since(start).Round(time.Millisecond))
		return Result[T]{Outcome: Unknown, Err: fmt.Errorf("%s: timed out after %s", label, timeout)}
	}
}
