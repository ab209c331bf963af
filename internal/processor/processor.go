package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/fileutil"
	"github.com/clipper-camera/clipper-app/internal/health"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/logging"
	"github.com/clipper-camera/clipper-app/internal/network"
	"github.com/clipper-camera/clipper-app/internal/notifications"
	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/services"
	"github.com/clipper-camera/clipper-app/internal/transfer"
)

// Deps carries the collaborators a Processor drives. Everything is injected;
// the processor owns no singletons.
type Deps struct {
	Config   *config.Config
	Store    *queue.Store
	History  *history.Store
	Oracle   network.Oracle
	Probe    health.Probe
	Executor transfer.Executor
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Processor owns the drain loop: it watches the queue, gates each pass on
// endpoint configuration, connectivity, and remote health, and walks pending
// items oldest first. At most one pass runs at a time.
type Processor struct {
	cfg      *config.Config
	store    *queue.Store
	history  *history.Store
	oracle   network.Oracle
	probe    health.Probe
	executor transfer.Executor
	notifier notifications.Service
	logger   *slog.Logger

	maxRetries    int
	minInterval   time.Duration
	retryInterval time.Duration

	trigger chan struct{}
	events  *hub

	mu         sync.Mutex
	running    bool
	forceNext  bool
	lastPass   time.Time
	cancel     context.CancelFunc
	retryTimer *time.Timer
	wg         sync.WaitGroup
}

// New validates dependencies and builds a stopped processor.
func New(deps Deps) (*Processor, error) {
	if deps.Config == nil {
		return nil, errors.New("processor requires config")
	}
	if deps.Store == nil {
		return nil, errors.New("processor requires queue store")
	}
	if deps.History == nil {
		return nil, errors.New("processor requires history store")
	}
	if deps.Executor == nil {
		return nil, errors.New("processor requires transfer executor")
	}
	if deps.Oracle == nil {
		deps.Oracle = network.NewSystemOracle()
	}
	if deps.Probe == nil {
		deps.Probe = health.NewProbe(deps.Config)
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(deps.Config)
	}

	minInterval := time.Duration(deps.Config.Workflow.QueuePollInterval) * time.Second
	if minInterval <= 0 {
		minInterval = 2 * time.Second
	}
	retryInterval := time.Duration(deps.Config.Workflow.ErrorRetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 10 * time.Second
	}
	maxRetries := deps.Config.Workflow.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Processor{
		cfg:           deps.Config,
		store:         deps.Store,
		history:       deps.History,
		oracle:        deps.Oracle,
		probe:         deps.Probe,
		executor:      deps.Executor,
		notifier:      deps.Notifier,
		logger:        logging.NewComponentLogger(deps.Logger, "processor"),
		maxRetries:    maxRetries,
		minInterval:   minInterval,
		retryInterval: retryInterval,
		trigger:       make(chan struct{}, 1),
		events:        newHub(),
	}, nil
}

// Start reconciles crash leftovers and launches the drain goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	if err := p.Reconcile(ctx); err != nil {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
		cancel()
		return fmt.Errorf("reconcile on start: %w", err)
	}

	p.wg.Add(1)
	go p.run(runCtx)

	if pending, err := p.store.ListPending(ctx); err == nil && len(pending) > 0 {
		p.Trigger()
	}
	return nil
}

// Stop halts the drain loop and waits for any in-flight pass to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.events.closeAll()
}

// Submit persists a new upload and wakes the drain loop immediately. It never
// waits on the network; offline submissions simply sit in the queue.
func (p *Processor) Submit(ctx context.Context, payloadPath string, kind queue.MediaKind, recipients []string, overlays []queue.Overlay) (*queue.Item, error) {
	item, err := p.store.Enqueue(ctx, payloadPath, kind, recipients, overlays)
	if err != nil {
		return nil, err
	}
	if err := p.history.Insert(ctx, item.ID, item.MediaKind, queue.StatusPending); err != nil {
		p.logger.Warn("history entry not recorded",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err),
			logging.Alert("history_insert_failed"))
	}
	p.events.publish(Event{Type: EventItemQueued, ItemID: item.ID})
	p.logger.Info("item queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("media_kind", string(item.MediaKind)),
		logging.Int("recipients", len(item.Recipients)))

	p.mu.Lock()
	p.forceNext = true
	p.mu.Unlock()
	p.Trigger()
	return item, nil
}

// Trigger requests a drain pass. Requests inside the pacing window are
// deferred, not dropped; concurrent requests coalesce into one pass.
func (p *Processor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Subscribe registers an event observer. The returned cancel func must be
// called to release the subscription.
func (p *Processor) Subscribe() (<-chan Event, func()) {
	return p.events.subscribe()
}

// Snapshot reports processor and queue state for status surfaces.
type Snapshot struct {
	Running    bool
	LastPass   time.Time
	Queue      queue.HealthSummary
	Probe      health.Result
	ProbeValid bool
}

// Status assembles a point-in-time snapshot.
func (p *Processor) Status(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	snapshot := Snapshot{Running: p.running, LastPass: p.lastPass}
	p.mu.Unlock()

	healthSummary, err := p.store.Health(ctx)
	if err != nil {
		return snapshot, err
	}
	snapshot.Queue = healthSummary
	snapshot.Probe, snapshot.ProbeValid = p.probe.Last()
	return snapshot, nil
}

// Reconcile closes out history entries orphaned by a crash: open entries with
// no queue item become failed "interrupted", and queue items stuck in
// uploading return to pending for another attempt.
func (p *Processor) Reconcile(ctx context.Context) error {
	ids, err := p.store.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list queue ids: %w", err)
	}
	open, err := p.history.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open history: %w", err)
	}
	for _, entry := range open {
		if _, exists := ids[entry.ID]; exists {
			continue
		}
		if err := p.history.MarkFailed(ctx, entry.ID, history.InterruptedReason); err != nil {
			return fmt.Errorf("mark interrupted %d: %w", entry.ID, err)
		}
		p.logger.Warn("orphaned history entry closed",
			logging.Int64(logging.FieldItemID, entry.ID),
			logging.Alert("interrupted_upload"))
	}

	items, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list queue items: %w", err)
	}
	for _, item := range items {
		if item.Status != queue.StatusUploading {
			continue
		}
		if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusPending); err != nil {
			return fmt.Errorf("reset stuck item %d: %w", item.ID, err)
		}
		if err := p.history.SetStatus(ctx, item.ID, queue.StatusPending); err != nil {
			return fmt.Errorf("reset stuck history %d: %w", item.ID, err)
		}
		p.logger.Info("stuck upload reset to pending", logging.Int64(logging.FieldItemID, item.ID))
	}
	return nil
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
		}

		if !p.consumeForce() {
			if wait := p.minInterval - time.Since(p.lastPassTime()); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		p.runPass(ctx)
	}
}

func (p *Processor) consumeForce() bool {
	p.mu.Lock()
	forced := p.forceNext
	p.forceNext = false
	p.mu.Unlock()
	return forced
}

func (p *Processor) lastPassTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPass
}

func (p *Processor) setLastPass(at time.Time) {
	p.mu.Lock()
	p.lastPass = at
	p.mu.Unlock()
}

func (p *Processor) runPass(ctx context.Context) {
	passStart := time.Now()
	defer p.setLastPass(time.Now())

	if err := p.checkGates(ctx); err != nil {
		p.events.publish(Event{Type: EventPassSkipped, Detail: err.Error()})
		p.logger.Debug("drain pass skipped", logging.Error(err))
		p.scheduleRetryPass(ctx)
		return
	}

	items, err := p.store.ListPending(ctx)
	if err != nil {
		p.logger.Error("list pending items", logging.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	completed, failed := 0, 0
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		outcome := p.processItem(ctx, item)
		switch outcome {
		case outcomeCompleted:
			completed++
		case outcomeFailed:
			failed++
		case outcomeAborted:
			p.scheduleRetryPass(ctx)
			return
		}
	}

	healthSummary, err := p.store.Health(ctx)
	if err != nil {
		p.logger.Error("queue health after pass", logging.Error(err))
		return
	}
	if healthSummary.Pending == 0 && (completed > 0 || failed > 0) {
		p.events.publish(Event{Type: EventQueueDrained, Detail: fmt.Sprintf("%d completed, %d failed", completed, failed)})
		if err := p.notifier.NotifyQueueDrained(ctx, completed, failed, time.Since(passStart)); err != nil {
			p.logger.Warn("queue drained notification", logging.Error(err))
		}
		return
	}
	if healthSummary.Pending > 0 {
		p.scheduleRetryPass(ctx)
	}
}

// checkGates verifies pre-flight conditions in a fixed order. A closed gate
// aborts the pass before any item is touched.
func (p *Processor) checkGates(ctx context.Context) error {
	if !p.cfg.EndpointConfigured() {
		return services.Wrap(services.ErrConfigurationMissing, "preflight", "endpoint not configured", nil)
	}

	status, err := p.oracle.Status(ctx)
	if err != nil {
		return services.Wrap(services.ErrConnectivityUnavailable, "preflight", "connectivity check", err)
	}
	if !status.Online {
		return services.Wrap(services.ErrConnectivityUnavailable, "preflight", "no usable network", nil)
	}
	if status.Metered && !p.cfg.Transport.AllowMetered {
		return services.Wrap(services.ErrConnectivityUnavailable, "preflight",
			fmt.Sprintf("metered transport %s blocked by policy", status.Interface), nil)
	}

	result := p.probe.Check(ctx)
	if !result.Healthy {
		return services.Wrap(services.ErrServerUnavailable, "preflight", result.Detail, nil)
	}
	return nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeRequeued
	outcomeAborted
)

func (p *Processor) processItem(ctx context.Context, item *queue.Item) outcome {
	attemptID := uuid.NewString()
	log := p.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldAttemptID, attemptID),
	)

	if !fileutil.FileExists(item.PayloadPath) {
		err := services.Wrap(services.ErrPayloadMissing, "preflight", item.PayloadPath, nil)
		log.Warn("payload gone before attempt", logging.Error(err))
		p.failItem(ctx, item, services.Reason(err))
		return outcomeFailed
	}
	if item.RetryCount > p.maxRetries {
		log.Warn("retry budget already exhausted",
			logging.Int("retry_count", item.RetryCount),
			logging.Alert("retry_budget_exhausted"))
		p.failItem(ctx, item, "retry limit reached")
		return outcomeFailed
	}

	if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusUploading); err != nil {
		log.Error("mark item uploading", logging.Error(err))
		return outcomeAborted
	}
	if err := p.history.SetStatus(ctx, item.ID, queue.StatusUploading); err != nil {
		log.Warn("mark history uploading", logging.Error(err))
	}
	p.events.publish(Event{Type: EventUploadStarted, ItemID: item.ID})
	log.Info("upload started",
		logging.String("media_kind", string(item.MediaKind)),
		logging.Int("attempt", item.RetryCount+1))

	uploadErr := p.executor.Upload(ctx, item, func(pct int) {
		if err := p.history.SetProgress(ctx, item.ID, pct); err != nil {
			log.Debug("record progress", logging.Error(err))
		}
		p.events.publish(Event{Type: EventUploadProgress, ItemID: item.ID, Progress: pct})
	})

	if uploadErr == nil {
		if err := p.history.MarkCompleted(ctx, item.ID); err != nil {
			log.Error("mark history completed", logging.Error(err))
		}
		if _, err := p.store.Remove(ctx, item.ID); err != nil {
			log.Error("remove completed item", logging.Error(err))
		}
		p.events.publish(Event{Type: EventUploadCompleted, ItemID: item.ID, Progress: 100})
		log.Info("upload completed")
		if err := p.notifier.NotifyUploadCompleted(ctx, item.MediaKind, len(item.Recipients)); err != nil {
			log.Warn("upload notification", logging.Error(err))
		}
		return outcomeCompleted
	}

	if services.PassFatal(uploadErr) {
		if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusPending); err != nil {
			log.Error("restore item to pending", logging.Error(err))
		}
		if err := p.history.SetStatus(ctx, item.ID, queue.StatusPending); err != nil {
			log.Warn("restore history to pending", logging.Error(err))
		}
		log.Warn("pass aborted mid-item", logging.Error(uploadErr))
		return outcomeAborted
	}

	if services.ItemFatal(uploadErr) {
		log.Warn("upload permanently failed", logging.Error(uploadErr))
		p.failItem(ctx, item, services.Reason(uploadErr))
		return outcomeFailed
	}

	newCount := item.RetryCount + 1
	if newCount > p.maxRetries {
		log.Warn("upload failed, retry budget spent",
			logging.Error(uploadErr),
			logging.Int("retry_count", newCount))
		p.failItem(ctx, item, services.Reason(uploadErr))
		return outcomeFailed
	}

	if err := p.store.UpdateRetryCount(ctx, item.ID, newCount); err != nil {
		log.Error("record retry count", logging.Error(err))
	}
	if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusPending); err != nil {
		log.Error("requeue item", logging.Error(err))
	}
	if err := p.history.SetStatus(ctx, item.ID, queue.StatusPending); err != nil {
		log.Warn("requeue history", logging.Error(err))
	}
	p.events.publish(Event{Type: EventUploadRetrying, ItemID: item.ID, Detail: services.Reason(uploadErr)})
	log.Info("upload will retry",
		logging.Error(uploadErr),
		logging.Int("retry_count", newCount),
		logging.Int("retries_left", p.maxRetries-newCount))
	return outcomeRequeued
}

// failItem records a terminal failure: the history entry keeps the reason,
// the queue row goes away.
func (p *Processor) failItem(ctx context.Context, item *queue.Item, reason string) {
	if err := p.history.MarkFailed(ctx, item.ID, reason); err != nil {
		p.logger.Error("mark history failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err))
	}
	if _, err := p.store.Remove(ctx, item.ID); err != nil {
		p.logger.Error("remove failed item",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err))
	}
	p.events.publish(Event{Type: EventUploadFailed, ItemID: item.ID, Detail: reason})
	if err := p.notifier.NotifyUploadFailed(ctx, item.MediaKind, reason); err != nil {
		p.logger.Warn("failure notification",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err))
	}
}

// scheduleRetryPass arms a one-shot wake after the error retry interval so
// deferred items eventually get another pass without busy polling. At most
// one wake is armed at a time.
func (p *Processor) scheduleRetryPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retryTimer != nil {
		p.retryTimer.Stop()
	}
	p.retryTimer = time.AfterFunc(p.retryInterval, p.Trigger)
}
