package processor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/health"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/network"
	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/services"
	"github.com/clipper-camera/clipper-app/internal/testsupport"
	"github.com/clipper-camera/clipper-app/internal/transfer"
)

type fakeOracle struct {
	status network.Status
	err    error
}

func (f *fakeOracle) Status(context.Context) (network.Status, error) {
	return f.status, f.err
}

type fakeProbe struct {
	healthy bool
	detail  string
}

func (f *fakeProbe) Check(context.Context) health.Result {
	return health.Result{Healthy: f.healthy, Detail: f.detail, CheckedAt: time.Now()}
}

func (f *fakeProbe) Last() (health.Result, bool) {
	return health.Result{Healthy: f.healthy, Detail: f.detail}, true
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []int64
	results []error
}

func (f *fakeExecutor) Upload(_ context.Context, item *queue.Item, onProgress transfer.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, item.ID)
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) callOrder() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

type testRig struct {
	proc    *Processor
	store   *queue.Store
	history *history.Store
	exec    *fakeExecutor
	oracle  *fakeOracle
	probe   *fakeProbe
	cfg     *config.Config
}

func newRig(t *testing.T, results ...error) *testRig {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithEndpoint("http://upload.test", "key"))
	store := testsupport.MustOpenStore(t, cfg)
	hist := testsupport.MustOpenHistory(t, cfg)

	exec := &fakeExecutor{results: results}
	oracle := &fakeOracle{status: network.Status{Online: true, Interface: "eth0"}}
	probe := &fakeProbe{healthy: true}

	proc, err := New(Deps{
		Config:   cfg,
		Store:    store,
		History:  hist,
		Oracle:   oracle,
		Probe:    probe,
		Executor: exec,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testRig{proc: proc, store: store, history: hist, exec: exec, oracle: oracle, probe: probe, cfg: cfg}
}

func (r *testRig) submit(t *testing.T, payload string) *queue.Item {
	t.Helper()
	item, err := r.proc.Submit(context.Background(), payload, queue.MediaImage, []string{"alice"}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return item
}

func payloadFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.jpg")
	testsupport.WriteFile(t, path, 512)
	return path
}

func TestRetryBudgetBoundsTotalAttempts(t *testing.T) {
	rig := newRig(t,
		services.Wrap(services.ErrTransportError, "upload", "t1", nil),
		services.Wrap(services.ErrServerError, "upload", "t2", nil),
		services.Wrap(services.ErrResponseUnparseable, "upload", "t3", nil),
		services.Wrap(services.ErrTransportError, "upload", "t4", nil),
	)
	item := rig.submit(t, payloadFile(t))
	ctx := context.Background()

	for pass := 0; pass < 6; pass++ {
		rig.proc.runPass(ctx)
	}

	if got := rig.exec.callCount(); got != 4 {
		t.Fatalf("attempts = %d, want 4 (1 initial + 3 retries)", got)
	}
	if exists, _ := rig.store.Has(ctx, item.ID); exists {
		t.Fatal("exhausted item still in queue")
	}
	entry, err := rig.history.Get(ctx, item.ID)
	if err != nil || entry == nil {
		t.Fatalf("history entry missing: %v", err)
	}
	if entry.Status != queue.StatusFailed {
		t.Fatalf("history status = %q, want failed", entry.Status)
	}
	if entry.ErrorMessage != "network error" {
		t.Fatalf("history reason = %q", entry.ErrorMessage)
	}
}

func TestServerRejectionFailsWithoutRetry(t *testing.T) {
	rig := newRig(t, services.Wrap(services.ErrServerRejected, "upload", "server returned 403", nil))
	item := rig.submit(t, payloadFile(t))
	ctx := context.Background()

	rig.proc.runPass(ctx)
	rig.proc.runPass(ctx)

	if got := rig.exec.callCount(); got != 1 {
		t.Fatalf("attempts = %d, want exactly 1 for a permanent rejection", got)
	}
	entry, _ := rig.history.Get(ctx, item.ID)
	if entry == nil || entry.Status != queue.StatusFailed || entry.ErrorMessage != "server rejected upload" {
		t.Fatalf("history entry = %+v", entry)
	}
	if exists, _ := rig.store.Has(ctx, item.ID); exists {
		t.Fatal("rejected item still in queue")
	}
}

func TestMissingPayloadFailsWithoutAttempt(t *testing.T) {
	rig := newRig(t)
	item := rig.submit(t, filepath.Join(t.TempDir(), "never-written.jpg"))
	ctx := context.Background()

	rig.proc.runPass(ctx)

	if got := rig.exec.callCount(); got != 0 {
		t.Fatalf("executor called %d times for missing payload", got)
	}
	entry, _ := rig.history.Get(ctx, item.ID)
	if entry == nil || entry.Status != queue.StatusFailed || entry.ErrorMessage != "payload missing" {
		t.Fatalf("history entry = %+v", entry)
	}
}

func TestClosedGatesLeaveQueueUntouched(t *testing.T) {
	cases := []struct {
		name  string
		setup func(rig *testRig)
	}{
		{"endpoint unconfigured", func(rig *testRig) {
			rig.cfg.Endpoint.BaseURL = ""
			rig.cfg.Endpoint.UserKey = ""
		}},
		{"offline", func(rig *testRig) {
			rig.oracle.status = network.Status{Online: false}
		}},
		{"metered blocked", func(rig *testRig) {
			rig.oracle.status = network.Status{Online: true, Metered: true, Interface: "wwan0"}
		}},
		{"endpoint unhealthy", func(rig *testRig) {
			rig.probe.healthy = false
			rig.probe.detail = "health returned 503"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rig := newRig(t)
			item := rig.submit(t, payloadFile(t))
			tc.setup(rig)
			ctx := context.Background()

			rig.proc.runPass(ctx)

			if got := rig.exec.callCount(); got != 0 {
				t.Fatalf("executor called %d times behind a closed gate", got)
			}
			loaded, _ := rig.store.Get(ctx, item.ID)
			if loaded == nil || loaded.Status != queue.StatusPending {
				t.Fatalf("item = %+v, want untouched pending", loaded)
			}
			if loaded.RetryCount != 0 {
				t.Fatalf("retry count = %d, closed gates must not consume budget", loaded.RetryCount)
			}
		})
	}
}

func TestMeteredTransportAllowedByPolicy(t *testing.T) {
	rig := newRig(t)
	rig.cfg.Transport.AllowMetered = true
	rig.oracle.status = network.Status{Online: true, Metered: true, Interface: "wwan0"}
	rig.submit(t, payloadFile(t))

	rig.proc.runPass(context.Background())

	if got := rig.exec.callCount(); got != 1 {
		t.Fatalf("executor calls = %d, want 1 with metered allowed", got)
	}
}

func TestDeliveryFollowsEnqueueOrder(t *testing.T) {
	rig := newRig(t)
	first := rig.submit(t, payloadFile(t))
	second := rig.submit(t, payloadFile(t))
	third := rig.submit(t, payloadFile(t))
	ctx := context.Background()

	rig.proc.runPass(ctx)

	order := rig.exec.callOrder()
	if len(order) != 3 || order[0] != first.ID || order[1] != second.ID || order[2] != third.ID {
		t.Fatalf("delivery order = %v, want [%d %d %d]", order, first.ID, second.ID, third.ID)
	}
	healthSummary, err := rig.store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if healthSummary.Total != 0 {
		t.Fatalf("queue not drained: %+v", healthSummary)
	}
}

func TestSuccessKeepsHistoryAfterQueueRemoval(t *testing.T) {
	rig := newRig(t)
	item := rig.submit(t, payloadFile(t))
	ctx := context.Background()

	rig.proc.runPass(ctx)

	if exists, _ := rig.store.Has(ctx, item.ID); exists {
		t.Fatal("completed item still in queue")
	}
	entry, err := rig.history.Get(ctx, item.ID)
	if err != nil || entry == nil {
		t.Fatalf("history entry missing: %v", err)
	}
	if entry.Status != queue.StatusCompleted || entry.Progress != 100 {
		t.Fatalf("history entry = %+v, want completed at 100", entry)
	}
}

func TestTransientFailureRequeuesWithIncrementedCount(t *testing.T) {
	rig := newRig(t, services.Wrap(services.ErrServerError, "upload", "server returned 500", nil))
	item := rig.submit(t, payloadFile(t))
	ctx := context.Background()

	rig.proc.runPass(ctx)

	loaded, _ := rig.store.Get(ctx, item.ID)
	if loaded == nil || loaded.Status != queue.StatusPending {
		t.Fatalf("item = %+v, want pending after transient failure", loaded)
	}
	if loaded.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", loaded.RetryCount)
	}

	rig.proc.runPass(ctx)

	if exists, _ := rig.store.Has(ctx, item.ID); exists {
		t.Fatal("item not completed on second pass")
	}
	entry, _ := rig.history.Get(ctx, item.ID)
	if entry == nil || entry.Status != queue.StatusCompleted {
		t.Fatalf("history entry = %+v", entry)
	}
}

func TestRetriedItemNotReattemptedSamePass(t *testing.T) {
	rig := newRig(t, services.Wrap(services.ErrTransportError, "upload", "reset", nil))
	rig.submit(t, payloadFile(t))

	rig.proc.runPass(context.Background())

	if got := rig.exec.callCount(); got != 1 {
		t.Fatalf("attempts in one pass = %d, want 1", got)
	}
}

func TestReconcileClosesOrphanedEntries(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	orphanID := int64(1600000000000)
	if err := rig.history.Insert(ctx, orphanID, queue.MediaVideo, queue.StatusUploading); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}
	kept := rig.submit(t, payloadFile(t))

	if err := rig.proc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	orphan, _ := rig.history.Get(ctx, orphanID)
	if orphan == nil || orphan.Status != queue.StatusFailed || orphan.ErrorMessage != history.InterruptedReason {
		t.Fatalf("orphan = %+v, want failed %q", orphan, history.InterruptedReason)
	}
	entry, _ := rig.history.Get(ctx, kept.ID)
	if entry == nil || entry.Status != queue.StatusPending {
		t.Fatalf("backed entry = %+v, want untouched pending", entry)
	}

	// Running it again must not disturb the already-closed entry.
	if err := rig.proc.Reconcile(ctx); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	again, _ := rig.history.Get(ctx, orphanID)
	if again == nil || again.ErrorMessage != history.InterruptedReason {
		t.Fatalf("orphan after second pass = %+v", again)
	}
}

func TestReconcileResetsStuckUploads(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	item := rig.submit(t, payloadFile(t))
	if err := rig.store.UpdateStatus(ctx, item.ID, queue.StatusUploading); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := rig.history.SetStatus(ctx, item.ID, queue.StatusUploading); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := rig.proc.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	loaded, _ := rig.store.Get(ctx, item.ID)
	if loaded == nil || loaded.Status != queue.StatusPending {
		t.Fatalf("item = %+v, want pending", loaded)
	}
	entry, _ := rig.history.Get(ctx, item.ID)
	if entry == nil || entry.Status != queue.StatusPending {
		t.Fatalf("history entry = %+v, want pending", entry)
	}
}

func TestSubmitNeverBlocksOnClosedGates(t *testing.T) {
	rig := newRig(t)
	rig.oracle.status = network.Status{Online: false}

	done := make(chan *queue.Item, 1)
	go func() {
		item, err := rig.proc.Submit(context.Background(), payloadFile(t), queue.MediaVideo, nil, nil)
		if err != nil {
			t.Errorf("Submit: %v", err)
		}
		done <- item
	}()

	select {
	case item := <-done:
		entry, _ := rig.history.Get(context.Background(), item.ID)
		if entry == nil || entry.Status != queue.StatusPending {
			t.Fatalf("history entry = %+v", entry)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked while offline")
	}
}

func TestEventsFollowUploadLifecycle(t *testing.T) {
	rig := newRig(t)
	events, cancel := rig.proc.Subscribe()
	defer cancel()

	item := rig.submit(t, payloadFile(t))
	rig.proc.runPass(context.Background())

	seen := make(map[EventType]bool)
	var progress []int
	for {
		select {
		case event := <-events:
			seen[event.Type] = true
			if event.Type == EventUploadProgress {
				progress = append(progress, event.Progress)
			}
			if event.ItemID != 0 && event.ItemID != item.ID {
				t.Fatalf("event for unexpected item %d", event.ItemID)
			}
		default:
			for _, want := range []EventType{EventItemQueued, EventUploadStarted, EventUploadProgress, EventUploadCompleted, EventQueueDrained} {
				if !seen[want] {
					t.Fatalf("missing event %q, saw %v", want, seen)
				}
			}
			for i := 1; i < len(progress); i++ {
				if progress[i] < progress[i-1] {
					t.Fatalf("progress events regressed: %v", progress)
				}
			}
			return
		}
	}
}

func TestStartAndStopLifecycle(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	if err := rig.proc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rig.proc.Start(ctx); err == nil {
		t.Fatal("second Start accepted")
	}

	snapshot, err := rig.proc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !snapshot.Running {
		t.Fatal("snapshot reports not running")
	}

	rig.proc.Stop()
	snapshot, err = rig.proc.Status(ctx)
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if snapshot.Running {
		t.Fatal("snapshot reports running after Stop")
	}
}
