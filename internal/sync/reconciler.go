// Package sync schedules full-refetch reconciliation for the client
// stores: periodic refreshes, immediate triggers after failed optimistic
// mutations or push events, and bounded retry with backoff before a
// store is flagged out of sync.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edusuite/edusync/internal/logger"
)

// fetchTimeout is the maximum time allowed for a single refetch attempt.
const fetchTimeout = 30 * time.Second

// retryBaseDelay is the first retry delay; it doubles per attempt.
const retryBaseDelay = 500 * time.Millisecond

// Refreshable is a store that can replace its state with a full
// authoritative refetch.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// outOfSyncMarker is implemented by stores that surface a persistent
// out-of-sync indicator once the retry budget is exhausted.
type outOfSyncMarker interface {
	SetOutOfSync()
}

// Result is a tea.Msg sent when a reconciliation pass completes.
type Result struct {
	// Name identifies the registered store.
	Name string

	// Err is the last refetch error when the pass failed.
	Err error

	// OutOfSync reports that the retry budget was exhausted and the
	// store's state may be stale until the next successful refresh.
	OutOfSync bool
}

// entry holds a registered store and its refresh loop state. Each entry
// has its own trigger channel so a trigger for one store is never consumed
// by another store's loop.
type entry struct {
	name      string
	target    Refreshable
	triggerCh chan struct{}
}

// Reconciler orchestrates background reconciliation of registered stores.
type Reconciler struct {
	interval   time.Duration
	maxRetries int
	log        *logger.Logger

	mu      gosync.Mutex
	entries []entry
	running bool

	resultCh chan Result
	stopCh   chan struct{}
}

// New creates a Reconciler. interval is the periodic refresh cadence;
// maxRetries bounds the per-pass retry budget.
func New(interval time.Duration, maxRetries int, log *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		interval:   interval,
		maxRetries: maxRetries,
		log:        log,
		resultCh:   make(chan Result, 16),
		stopCh:     make(chan struct{}),
	}
}

// Register adds a store to the reconciliation schedule.
func (r *Reconciler) Register(name string, target Refreshable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{
		name:      name,
		target:    target,
		triggerCh: make(chan struct{}, 1),
	})
}

// Start launches a refresh loop per registered store and returns a
// command that waits for the first result.
func (r *Reconciler) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		go r.loop(e)
	}

	return r.waitForResult()
}

// Stop halts all refresh loops. Idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stopCh)
	r.running = false
}

// Trigger requests an immediate reconciliation pass for the named store.
// Never blocks; a pending trigger coalesces with the new one. Unknown
// names are ignored.
func (r *Reconciler) Trigger(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.name != name {
			continue
		}
		select {
		case e.triggerCh <- struct{}{}:
		default:
		}
		return
	}
}

// TriggerAll requests an immediate pass for every registered store.
func (r *Reconciler) TriggerAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		select {
		case e.triggerCh <- struct{}{}:
		default:
		}
	}
}

// WaitForNextResult returns a command that waits for the next
// reconciliation result. Call it after processing a Result to keep
// listening.
func (r *Reconciler) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}

// loop runs the reconciliation loop for a single store.
func (r *Reconciler) loop(e entry) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial pass so the store is populated at startup.
	r.reconcile(e)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.reconcile(e)
		case <-e.triggerCh:
			r.reconcile(e)
		}
	}
}

// reconcile performs one reconciliation pass: refetch with bounded
// retries and exponential backoff, then flag the store out of sync if
// every attempt failed.
func (r *Reconciler) reconcile(e entry) {
	var lastErr error
	delay := retryBaseDelay

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-r.stopCh:
				return
			case <-time.After(delay):
			}
			delay *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		err := e.target.Refresh(ctx)
		cancel()

		if err == nil {
			r.sendResult(Result{Name: e.name})
			return
		}
		lastErr = err
		r.log.Warnw("reconciliation refetch failed",
			"store", e.name, "attempt", attempt+1, "error", err)
	}

	if marker, ok := e.target.(outOfSyncMarker); ok {
		marker.SetOutOfSync()
	}
	r.sendResult(Result{Name: e.name, Err: lastErr, OutOfSync: true})
}

// sendResult sends a Result without blocking. Dropped results are fine:
// the UI re-reads store state on every message anyway.
func (r *Reconciler) sendResult(res Result) {
	select {
	case r.resultCh <- res:
	default:
	}
}

// waitForResult returns a command that waits for the next result from
// the result channel.
func (r *Reconciler) waitForResult() tea.Cmd {
	return func() tea.Msg {
		res, ok := <-r.resultCh
		if !ok {
			return nil
		}
		return res
	}
}
