// Package dispatch moves backend notifications off the thread that delivered them.
//
// Backends raise notifications on goroutines they own. Running application
// callbacks there risks re-entering the backend library, so notifications are
// queued on a Worker and executed, in order, by a single goroutine.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/dooshek/ttsclient/internal/logger"
)

// Task is a unit of work executed on the worker goroutine
type Task func()

// Worker executes posted tasks one at a time in FIFO order.
// The goroutine is started lazily on the first Post and stopped by Cleanup;
// a Post after Cleanup starts a fresh goroutine.
type Worker struct {
	mu      sync.Mutex
	queue   []Task
	started bool
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewWorker creates an idle worker
func NewWorker() *Worker {
	return &Worker{}
}

// Post enqueues task and wakes the worker goroutine. It never blocks on task execution.
func (w *Worker) Post(task Task) {
	if task == nil {
		return
	}

	w.mu.Lock()
	w.queue = append(w.queue, task)
	if !w.started {
		w.started = true
		prev := w.done
		w.wake = make(chan struct{}, 1)
		w.stop = make(chan struct{})
		w.done = make(chan struct{})
		go w.run(prev, w.wake, w.stop, w.done)
	}
	wake := w.wake
	w.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

// Cleanup stops the worker goroutine and waits for it to exit, discarding
// tasks that have not started. Safe to call repeatedly and on a worker that never ran.
// Must not be called from inside a task.
func (w *Worker) Cleanup() {
	w.mu.Lock()
	if !w.started {
		w.queue = nil
		w.mu.Unlock()
		return
	}
	done := w.done
	w.started = false
	w.queue = nil
	close(w.stop)
	w.mu.Unlock()

	<-done
	logger.Debug("Exited from dispatch worker")
}

// Pending returns the number of queued tasks
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Running reports whether the worker goroutine is currently started
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// run drains the queue until stop is closed. It waits for the previous
// generation to exit first so that only one goroutine ever consumes the queue.
func (w *Worker) run(prev <-chan struct{}, wake <-chan struct{}, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}
	logger.Debug("Started dispatch worker")

	for {
		w.mu.Lock()
		select {
		case <-stop:
			w.mu.Unlock()
			return
		default:
		}

		if len(w.queue) == 0 {
			w.mu.Unlock()
			select {
			case <-wake:
				continue
			case <-stop:
				return
			}
		}

		task := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		execute(task)
	}
}

func execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Dispatch task panicked", fmt.Errorf("%v", r))
		}
	}()
	task()
}
