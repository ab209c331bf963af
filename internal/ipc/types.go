package ipc

import "github.com/clipper-camera/clipper-app/internal/queue"

// Overlay mirrors the queue overlay type for IPC callers.
type Overlay = queue.Overlay

// QueueItem is the wire representation of one queued upload.
type QueueItem struct {
	ID           int64    `json:"id"`
	PayloadPath  string   `json:"payload_path"`
	MediaKind    string   `json:"media_kind"`
	Recipients   []string `json:"recipients"`
	Status       string   `json:"status"`
	RetryCount   int      `json:"retry_count"`
	ErrorMessage string   `json:"error_message,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// HistoryEntry is the wire representation of one history log record.
type HistoryEntry struct {
	ID           int64  `json:"id"`
	MediaKind    string `json:"media_kind"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Contact is the wire representation of one recipient directory entry.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SendRequest enqueues a media file for upload.
type SendRequest struct {
	Path       string    `json:"path"`
	MediaKind  string    `json:"media_kind"`
	Recipients []string  `json:"recipients"`
	Overlays   []Overlay `json:"overlays"`
}

// SendResponse returns the persisted queue item.
type SendResponse struct {
	Item QueueItem `json:"item"`
}

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	Pong bool `json:"pong"`
}

// TriggerRequest requests an immediate drain pass.
type TriggerRequest struct{}

// TriggerResponse acknowledges the trigger.
type TriggerResponse struct {
	Triggered bool `json:"triggered"`
}

// StopRequest stops background processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/processor status information.
type StatusResponse struct {
	Running         bool           `json:"running"`
	QueueTotal      int            `json:"queue_total"`
	QueuePending    int            `json:"queue_pending"`
	QueueUploading  int            `json:"queue_uploading"`
	HistoryStats    map[string]int `json:"history_stats"`
	LastPass        string         `json:"last_pass,omitempty"`
	EndpointHealthy bool           `json:"endpoint_healthy"`
	EndpointDetail  string         `json:"endpoint_detail,omitempty"`
	QueueDBPath     string         `json:"queue_db_path"`
	HistoryDBPath   string         `json:"history_db_path"`
	LockPath        string         `json:"lock_path"`
	PID             int            `json:"pid"`
}

// QueueListRequest fetches all queue items.
type QueueListRequest struct{}

// QueueListResponse contains queue entries in delivery order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueClearRequest removes all queue items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// HistoryListRequest fetches history entries newest first. Limit 0 means all.
type HistoryListRequest struct {
	Limit int `json:"limit"`
}

// HistoryListResponse contains history entries.
type HistoryListResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// HistoryClearRequest removes all history entries.
type HistoryClearRequest struct{}

// HistoryClearResponse reports number of removed entries.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

// ContactsRequest fetches the recipient directory.
type ContactsRequest struct{}

// ContactsResponse lists known recipients sorted by name.
type ContactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

// ContactsReloadRequest re-reads the recipient directory from disk.
type ContactsReloadRequest struct{}

// ContactsReloadResponse acknowledges the reload.
type ContactsReloadResponse struct {
	Reloaded bool `json:"reloaded"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
