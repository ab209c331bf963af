package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// MediaKind tags the payload as a still image or a video clip.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind converts a string into a known MediaKind.
func ParseMediaKind(value string) (MediaKind, bool) {
	normalized := MediaKind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MediaImage, MediaVideo:
		return normalized, true
	}
	return "", false
}

// ContentType returns the MIME type used for the media part of a submission.
func (k MediaKind) ContentType() string {
	if k == MediaVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// Overlay is one text annotation rendered on top of the media, transmitted
// alongside it.
type Overlay struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
	Color    string  `json:"color"`
	Font     string  `json:"font"`
}

// Item represents one queued upload persisted in SQLite.
//
// The ID is the enqueue time in unix milliseconds; it doubles as the
// creation timestamp and defines delivery order. The store bumps the ID on
// collision so two enqueues in the same millisecond stay distinct.
type Item struct {
	ID           int64
	PayloadPath  string
	MediaKind    MediaKind
	Recipients   []string
	Overlays     []Overlay
	Status       Status
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreatedTime derives the creation instant from the item identifier.
func (i *Item) CreatedTime() time.Time {
	return time.UnixMilli(i.ID).UTC()
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status implies removal from the queue store.
func Terminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Uploading int
}
