package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRefreshable struct {
	calls     int32
	failFirst int32
	outOfSync int32
}

func (f *fakeRefreshable) Refresh(ctx context.Context) error {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failFirst) {
		return errors.New("refetch failed")
	}
	return nil
}

func (f *fakeRefreshable) SetOutOfSync() {
	atomic.StoreInt32(&f.outOfSync, 1)
}

func TestReconcileRetriesThenSucceeds(t *testing.T) {
	target := &fakeRefreshable{failFirst: 2}
	r := New(time.Hour, 3, nil)

	r.reconcile(entry{name: "board", target: target})

	if got := atomic.LoadInt32(&target.calls); got != 3 {
		t.Fatalf("refresh attempts = %d, want 3", got)
	}
	if atomic.LoadInt32(&target.outOfSync) != 0 {
		t.Fatal("store flagged out of sync despite eventual success")
	}

	res := mustResult(t, r)
	if res.Err != nil || res.OutOfSync {
		t.Fatalf("result = %+v, want success", res)
	}
}

func TestReconcileExhaustedFlagsOutOfSync(t *testing.T) {
	target := &fakeRefreshable{failFirst: 100}
	r := New(time.Hour, 2, nil)

	r.reconcile(entry{name: "board", target: target})

	// maxRetries=2 means one initial attempt plus two retries.
	if got := atomic.LoadInt32(&target.calls); got != 3 {
		t.Fatalf("refresh attempts = %d, want 3", got)
	}
	if atomic.LoadInt32(&target.outOfSync) != 1 {
		t.Fatal("store not flagged out of sync")
	}

	res := mustResult(t, r)
	if res.Err == nil || !res.OutOfSync {
		t.Fatalf("result = %+v, want out-of-sync failure", res)
	}
}

func TestTriggerCausesImmediatePass(t *testing.T) {
	target := &fakeRefreshable{}
	r := New(time.Hour, 1, nil)
	r.Register("board", target)

	cmd := r.Start()
	defer r.Stop()

	// Initial pass at startup.
	if msg := cmd(); msg == nil {
		t.Fatal("no result from initial pass")
	}
	initial := atomic.LoadInt32(&target.calls)

	r.Trigger("board")
	if msg := r.WaitForNextResult()(); msg == nil {
		t.Fatal("no result from triggered pass")
	}
	if got := atomic.LoadInt32(&target.calls); got != initial+1 {
		t.Fatalf("calls = %d, want %d", got, initial+1)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	r := New(time.Hour, 1, nil)
	r.Register("board", &fakeRefreshable{})
	r.Start()
	r.Stop()
	r.Stop()
}

func TestTriggerUnknownNameIgnored(t *testing.T) {
	target := &fakeRefreshable{}
	r := New(time.Hour, 1, nil)
	r.Register("board", target)

	cmd := r.Start()
	defer r.Stop()
	cmd()

	initial := atomic.LoadInt32(&target.calls)
	r.Trigger("nope")
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&target.calls); got != initial {
		t.Fatalf("unknown trigger caused a pass: %d -> %d", initial, got)
	}
}

func mustResult(t *testing.T, r *Reconciler) Result {
	t.Helper()
	select {
	case res := <-r.resultCh:
		return res
	case <-time.After(time.Second):
		t.Fatal("no result on channel")
		return Result{}
	}
}
