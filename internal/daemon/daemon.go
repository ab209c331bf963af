package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/contacts"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/logging"
	"github.com/clipper-camera/clipper-app/internal/notifications"
	"github.com/clipper-camera/clipper-app/internal/processor"
	"github.com/clipper-camera/clipper-app/internal/queue"
)

var mediaKindByExtension = map[string]queue.MediaKind{
	".jpg":  queue.MediaImage,
	".jpeg": queue.MediaImage,
	".png":  queue.MediaImage,
	".mp4":  queue.MediaVideo,
	".mov":  queue.MediaVideo,
}

// Daemon coordinates the upload processor and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	history   *history.Store
	processor *processor.Processor
	contacts  contacts.Directory
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Processor     processor.Snapshot
	QueueDBPath   string
	HistoryDBPath string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, hist *history.Store, proc *processor.Processor, dir contacts.Directory, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || hist == nil || proc == nil {
		return nil, errors.New("daemon requires config, stores, and processor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		history:   hist,
		processor: proc,
		contacts:  dir,
		logPath:   filepath.Join(cfg.Paths.LogDir, "clipper.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the processor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipper daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.processor.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start processor: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("clipper daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.processor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipper daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.store != nil {
		firstErr = d.store.Close()
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Submit validates a media file and enqueues it for upload.
func (d *Daemon) Submit(ctx context.Context, sourcePath string, kind queue.MediaKind, recipients []string, overlays []queue.Overlay) (*queue.Item, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}

	if kind == "" {
		ext := strings.ToLower(filepath.Ext(info.Name()))
		detected, ok := mediaKindByExtension[ext]
		if !ok {
			return nil, fmt.Errorf("cannot infer media kind from extension %q, pass it explicitly", ext)
		}
		kind = detected
	}

	return d.processor.Submit(ctx, absPath, kind, recipients, overlays)
}

// Trigger requests an immediate drain pass.
func (d *Daemon) Trigger() {
	d.processor.Trigger()
}

// ListQueue returns all queue items in delivery order.
func (d *Daemon) ListQueue(ctx context.Context) ([]*queue.Item, error) {
	return d.store.List(ctx)
}

// QueueStats returns item counts grouped by status.
func (d *Daemon) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	return d.store.Stats(ctx)
}

// ClearQueue removes all queue items. History entries stay behind.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ListHistory returns history entries newest first, up to limit.
func (d *Daemon) ListHistory(ctx context.Context, limit int) ([]*history.Entry, error) {
	return d.history.List(ctx, limit)
}

// HistoryStats returns history entry counts grouped by status.
func (d *Daemon) HistoryStats(ctx context.Context) (map[queue.Status]int, error) {
	return d.history.Stats(ctx)
}

// ClearHistory removes all history entries.
func (d *Daemon) ClearHistory(ctx context.Context) (int64, error) {
	return d.history.Clear(ctx)
}

// Contacts returns the loaded recipient directory.
func (d *Daemon) Contacts() []contacts.Contact {
	if d.contacts == nil {
		return nil
	}
	return d.contacts.All()
}

// ReloadContacts re-reads the recipient directory from disk.
func (d *Daemon) ReloadContacts() error {
	if d.contacts == nil {
		return nil
	}
	return d.contacts.Reload()
}

// Subscribe follows processor events.
func (d *Daemon) Subscribe() (<-chan processor.Event, func()) {
	return d.processor.Subscribe()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	snapshot, err := d.processor.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:       d.running.Load(),
		Processor:     snapshot,
		QueueDBPath:   d.cfg.QueueDBPath(),
		HistoryDBPath: d.cfg.HistoryDBPath(),
		LockFilePath:  d.lockPath,
	}, nil
}
