// Package shutdownqueue provides a process-wide LIFO queue of named cleanup tasks.
//
// Components register their cleanup right after they start:
//
//	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
//	...
//	shutdownqueue.Add("postgres", func(context.Context) error { return db.Close() })
//
// and main drains the queue once on exit with Shutdown. Tasks run once, newest first,
// so dependents stop before their dependencies. Panics are recovered and reported.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

type entry struct {
	name string
	task Task
}

type queue struct {
	mu     sync.Mutex
	tasks  []entry
	closed bool
}

var q = &queue{tasks: make([]entry, 0, 8)}

// Add registers a named task to be run on Shutdown, in LIFO order.
// Safe to call from any goroutine. If t is nil or shutdown has already started,
// Add does nothing.
func Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		slog.Warn("shutdown task registered after shutdown started", "task", name)
		return
	}

	q.tasks = append(q.tasks, entry{name: name, task: t})
}

// Shutdown drains all registered tasks in LIFO order. Calls after the first are
// no-ops.
//
// If ctx is done mid-drain, the remaining tasks are skipped and the returned error
// joins the context error with the task errors collected so far.
func Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed && len(q.tasks) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled before %q: %w", tasks[i].name, ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := run(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func run(ctx context.Context, e entry) (err error) {
	started := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task %q: %v", e.name, r)
		}

		if err != nil {
			slog.Error("shutdown task failed", "task", e.name, "error", err)
			return
		}

		slog.Info("shutdown task done", "task", e.name, "took", time.Since(started))
	}()

	err = e.task(ctx)
	if err != nil {
		return fmt.Errorf("shutdown %s: %w", e.name, err)
	}

	return nil
}
