// Package payment waits for submitted invoices to settle.
package payment

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jsarenik/btcpos/internal/backend"
	"github.com/jsarenik/btcpos/internal/logging"
)

// Outcome is the single result of a Task.
type Outcome struct {
	SwapID     string
	Paid       bool
	Err        error // set when the wait failed; Paid is false then
	Generation uint64
}

// Task is one background wait on an invoice.
type Task struct {
	swapID     string
	generation uint64
	done       chan Outcome
	cancel     context.CancelFunc
}

// Done delivers exactly one Outcome and is then closed.
func (t *Task) Done() <-chan Outcome { return t.done }

// SwapID returns the invoice's swap identifier.
func (t *Task) SwapID() string { return t.swapID }

// Generation returns the watcher generation the task was started in.
func (t *Task) Generation() uint64 { return t.generation }

// Cancel stops the wait. The task still delivers an Outcome.
func (t *Task) Cancel() { t.cancel() }

// Watcher runs at most one interesting Task at a time. Starting a new watch
// or calling Abandon makes every earlier task stale.
type Watcher struct {
	log zerolog.Logger

	mu         sync.Mutex
	generation uint64
	current    *Task
}

// NewWatcher returns an idle Watcher.
func NewWatcher() *Watcher {
	return &Watcher{log: logging.WithComponent("payment")}
}

// Watch calls inv.AwaitCompletion once in the background and reports the
// result on the returned task. It never blocks. Any previously watched task
// is abandoned and cancelled.
func (w *Watcher) Watch(ctx context.Context, inv backend.Invoice) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.generation++
	task := &Task{
		swapID:     inv.SwapID(),
		generation: w.generation,
		done:       make(chan Outcome, 1),
		cancel:     cancel,
	}
	prev := w.current
	w.current = task
	w.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	go w.run(taskCtx, inv, task)
	return task
}

func (w *Watcher) run(ctx context.Context, inv backend.Invoice, task *Task) {
	defer task.cancel()
	paid, err := inv.AwaitCompletion(ctx)
	if err != nil {
		paid = false
	}
	out := Outcome{SwapID: task.swapID, Paid: paid, Err: err, Generation: task.generation}

	ev := w.log.Info()
	if err != nil {
		ev = w.log.Warn().Err(err)
	}
	ev.Str("swap_id", task.swapID).Bool("paid", paid).Uint64("generation", task.generation).Msg("payment resolved")

	task.done <- out
	close(task.done)
}

// IsCurrent reports whether o belongs to the most recently watched task and
// that task has not been abandoned.
func (w *Watcher) IsCurrent(o Outcome) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current != nil && o.Generation == w.generation && o.SwapID == w.current.swapID
}

// Abandon makes the current task stale and cancels it.
func (w *Watcher) Abandon() {
	w.mu.Lock()
	prev := w.current
	w.current = nil
	w.generation++
	w.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}
