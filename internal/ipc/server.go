package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/clipper-camera/clipper-app/internal/daemon"
	"github.com/clipper-camera/clipper-app/internal/history"
	"github.com/clipper-camera/clipper-app/internal/logging"
	"github.com/clipper-camera/clipper-app/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Clipper", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func convertItem(item *queue.Item) QueueItem {
	return QueueItem{
		ID:           item.ID,
		PayloadPath:  item.PayloadPath,
		MediaKind:    string(item.MediaKind),
		Recipients:   item.Recipients,
		Status:       string(item.Status),
		RetryCount:   item.RetryCount,
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    item.UpdatedAt.Format(time.RFC3339),
	}
}

func convertEntry(entry *history.Entry) HistoryEntry {
	return HistoryEntry{
		ID:           entry.ID,
		MediaKind:    string(entry.MediaKind),
		Status:       string(entry.Status),
		Progress:     entry.Progress,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    entry.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *service) Send(req SendRequest, resp *SendResponse) error {
	kind, ok := queue.ParseMediaKind(req.MediaKind)
	if req.MediaKind != "" && !ok {
		return fmt.Errorf("unknown media kind %q", req.MediaKind)
	}
	item, err := s.daemon.Submit(s.ctx, req.Path, kind, req.Recipients, req.Overlays)
	if err != nil {
		return err
	}
	resp.Item = convertItem(item)
	s.log().Info("item queued via IPC",
		logging.String(logging.FieldEventType, "ipc_send"),
		logging.Int64(logging.FieldItemID, item.ID))
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	return nil
}

func (s *service) Trigger(_ TriggerRequest, resp *TriggerResponse) error {
	s.daemon.Trigger()
	resp.Triggered = true
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = status.Running
	resp.QueueTotal = status.Processor.Queue.Total
	resp.QueuePending = status.Processor.Queue.Pending
	resp.QueueUploading = status.Processor.Queue.Uploading
	resp.QueueDBPath = status.QueueDBPath
	resp.HistoryDBPath = status.HistoryDBPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	if !status.Processor.LastPass.IsZero() {
		resp.LastPass = status.Processor.LastPass.UTC().Format(time.RFC3339)
	}
	if status.Processor.ProbeValid {
		resp.EndpointHealthy = status.Processor.Probe.Healthy
		resp.EndpointDetail = status.Processor.Probe.Detail
	}

	stats, err := s.daemon.HistoryStats(s.ctx)
	if err != nil {
		return err
	}
	resp.HistoryStats = make(map[string]int, len(stats))
	for status, count := range stats {
		resp.HistoryStats[string(status)] = count
	}
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	items, err := s.daemon.ListQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Items = append(resp.Items, convertItem(item))
	}
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested")
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	entries, err := s.daemon.ListHistory(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		resp.Entries = append(resp.Entries, convertEntry(entry))
	}
	return nil
}

func (s *service) HistoryClear(_ HistoryClearRequest, resp *HistoryClearResponse) error {
	s.log().Debug("history clear requested")
	removed, err := s.daemon.ClearHistory(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("history cleared",
		logging.String(logging.FieldEventType, "history_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Contacts(_ ContactsRequest, resp *ContactsResponse) error {
	known := s.daemon.Contacts()
	resp.Contacts = make([]Contact, 0, len(known))
	for _, contact := range known {
		resp.Contacts = append(resp.Contacts, Contact{ID: contact.ID, Name: contact.Name})
	}
	return nil
}

func (s *service) ContactsReload(_ ContactsReloadRequest, resp *ContactsReloadResponse) error {
	if err := s.daemon.ReloadContacts(); err != nil {
		return err
	}
	resp.Reloaded = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
