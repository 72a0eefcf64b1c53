package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/edusuite/edusync/internal/logger"
	"github.com/edusuite/edusync/internal/model"
	"github.com/edusuite/edusync/internal/realtime"
)

// BoardStore holds the task collection grouped into status buckets for
// the kanban board. A task id appears in exactly one bucket at any
// instant, including while an optimistic move awaits confirmation.
//
// Mutations are optimistic: the local bucket state changes before the
// confirming request resolves. On failure the optimistic state is
// discarded by requesting a full refetch of the authoritative board
// rather than a fine-grained rollback. Snapshot application is guarded
// by a generation counter so a fetch that raced with a newer local
// mutation (or a newer fetch) is discarded instead of overwriting it.
type BoardStore struct {
	api boardAPI
	bus Emitter
	log *logger.Logger

	mu        sync.Mutex
	tasks     map[string]model.Task
	buckets   map[model.Status][]string
	inflight  map[string]bool
	gen       uint64
	outOfSync bool
	closed    bool

	// refreshFn, when set, delegates failure refetches to the
	// reconciler (retry with backoff). When nil the store refetches
	// inline.
	refreshFn func()
}

// NewBoardStore creates a board store. The emitter may be nil in tests.
func NewBoardStore(api boardAPI, bus Emitter, log *logger.Logger) *BoardStore {
	if log == nil {
		log = logger.Nop()
	}
	return &BoardStore{
		api:      api,
		bus:      bus,
		log:      log,
		tasks:    make(map[string]model.Task),
		buckets:  make(map[model.Status][]string),
		inflight: make(map[string]bool),
	}
}

// SetRefreshTrigger installs the reconciler's trigger function. All
// reconciliation refetches are then routed through it so failures are
// retried with backoff.
func (s *BoardStore) SetRefreshTrigger(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFn = fn
}

// Bind subscribes the store to its push events on the shared connection.
// Each push triggers a full refetch: fine-grained merging is deliberately
// avoided, trading efficiency for correctness at low task volume.
func (s *BoardStore) Bind(conn Subscriber) {
	refetch := func(json.RawMessage) { s.requestRefresh() }
	conn.On(realtime.EventNewTask, refetch)
	conn.On(realtime.EventTaskUpdated, refetch)
	conn.On(realtime.EventTaskActivity, refetch)
}

// Refresh fetches the authoritative task list and replaces the board
// grouping. A result that started before a newer local mutation or a
// newer completed fetch is discarded, as is any result arriving after
// Close.
func (s *BoardStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	startGen := s.gen
	s.mu.Unlock()

	tasks, err := s.api.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("refreshing board: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.gen != startGen {
		s.log.Debugw("discarding stale board snapshot",
			"started_at_gen", startGen, "current_gen", s.gen)
		return nil
	}

	s.tasks = make(map[string]model.Task, len(tasks))
	s.buckets = make(map[model.Status][]string)
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.buckets[t.Status] = append(s.buckets[t.Status], t.ID)
	}
	s.gen++
	s.outOfSync = false
	return nil
}

// UpdateStatus moves the task to a new status bucket optimistically,
// then issues the confirming PUT. While the request is pending, further
// mutations of the same task are rejected with ErrUpdateInFlight. On
// failure the optimistic state is discarded by a full refetch.
func (s *BoardStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	s.mu.Lock()
	if s.inflight[id] {
		s.mu.Unlock()
		return ErrUpdateInFlight
	}
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if task.Status == status {
		s.mu.Unlock()
		return nil
	}

	// Optimistic move: remove from the old bucket, append to the new
	// one. The task is never in two buckets.
	s.removeFromBucket(task.Status, id)
	s.buckets[status] = append(s.buckets[status], id)
	task.Status = status
	s.tasks[id] = task
	s.inflight[id] = true
	s.gen++
	s.mu.Unlock()

	err := s.api.UpdateTask(ctx, task)

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()

	if err != nil {
		s.log.Warnw("status update failed, discarding optimistic state",
			"id", id, "status", status, "error", err)
		s.requestRefresh()
		return fmt.Errorf("confirming status of task %s: %w", id, err)
	}

	if s.bus != nil {
		s.bus.Emit(realtime.EventTaskStatusUpdate, map[string]string{
			"taskId": id,
			"status": string(status),
		})
	}
	return nil
}

// UpdatePriority changes the task's priority optimistically (no bucket
// move) with the same pending-request guard and refetch-on-failure as
// UpdateStatus.
func (s *BoardStore) UpdatePriority(ctx context.Context, id string, priority model.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("unknown priority %q", priority)
	}

	s.mu.Lock()
	if s.inflight[id] {
		s.mu.Unlock()
		return ErrUpdateInFlight
	}
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	if task.Priority == priority {
		s.mu.Unlock()
		return nil
	}
	task.Priority = priority
	s.tasks[id] = task
	s.inflight[id] = true
	s.gen++
	s.mu.Unlock()

	err := s.api.UpdateTask(ctx, task)

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()

	if err != nil {
		s.log.Warnw("priority update failed, discarding optimistic state",
			"id", id, "priority", priority, "error", err)
		s.requestRefresh()
		return fmt.Errorf("confirming priority of task %s: %w", id, err)
	}
	return nil
}

// Delegate reassigns the task, then resynchronizes with a full refetch.
func (s *BoardStore) Delegate(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	task.AssignedTo = userID
	if err := s.api.UpdateTask(ctx, task); err != nil {
		s.requestRefresh()
		return fmt.Errorf("delegating task %s: %w", id, err)
	}
	s.requestRefresh()
	return nil
}

// AddActivity appends an activity entry server-side, then resynchronizes
// with a full refetch.
func (s *BoardStore) AddActivity(ctx context.Context, id string, activity model.Activity) error {
	if err := s.api.AddTaskActivity(ctx, id, activity); err != nil {
		return fmt.Errorf("adding activity to task %s: %w", id, err)
	}
	if s.bus != nil {
		s.bus.Emit(realtime.EventTaskActivity, map[string]string{
			"taskId": id,
		})
	}
	s.requestRefresh()
	return nil
}

// Create submits a new task, then resynchronizes with a full refetch.
func (s *BoardStore) Create(ctx context.Context, task model.Task) error {
	if _, err := s.api.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	s.requestRefresh()
	return nil
}

// DeleteTask removes the task locally right away and issues the server
// delete. A failed delete is reported to the caller (for a toast) and
// followed by a refetch so the board converges on the server state.
func (s *BoardStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if ok {
		s.removeFromBucket(task.Status, id)
		delete(s.tasks, id)
		s.gen++
	}
	s.mu.Unlock()
	if !ok {
		return ErrTaskNotFound
	}

	err := s.api.DeleteTask(ctx, id)
	if err != nil {
		s.log.Warnw("delete failed", "id", id, "error", err)
	}
	s.requestRefresh()
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// Task returns the task with the given id, if present.
func (s *BoardStore) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Bucket returns the tasks in the given status bucket, in board order.
func (s *BoardStore) Bucket(status model.Status) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.buckets[status]
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tasks[id])
	}
	return out
}

// Buckets returns the full board grouping keyed by status.
func (s *BoardStore) Buckets() map[model.Status][]model.Task {
	out := make(map[model.Status][]model.Task, len(model.Statuses))
	for _, status := range model.Statuses {
		out[status] = s.Bucket(status)
	}
	return out
}

// Len returns the number of tasks on the board.
func (s *BoardStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// OutOfSync reports whether reconciliation has given up and the board
// may be stale. Cleared by the next successful Refresh.
func (s *BoardStore) OutOfSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outOfSync
}

// SetOutOfSync is called by the reconciler when its retry budget for a
// refetch is exhausted.
func (s *BoardStore) SetOutOfSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outOfSync = true
}

// Close marks the store disposed. Fetch results arriving after Close are
// discarded.
func (s *BoardStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// requestRefresh schedules a full reconciliation refetch, through the
// reconciler when one is wired, inline otherwise.
func (s *BoardStore) requestRefresh() {
	s.mu.Lock()
	fn := s.refreshFn
	s.mu.Unlock()

	if fn != nil {
		fn()
		return
	}
	if err := s.Refresh(context.Background()); err != nil {
		s.log.Warnw("inline board refresh failed", "error", err)
	}
}

// removeFromBucket deletes id from the given status bucket. Caller holds
// the lock.
func (s *BoardStore) removeFromBucket(status model.Status, id string) {
	ids := s.buckets[status]
	for i, existing := range ids {
		if existing == id {
			s.buckets[status] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
