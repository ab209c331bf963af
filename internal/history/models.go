package history

import (
	"time"

	"github.com/clipper-camera/clipper-app/internal/queue"
)

// InterruptedReason is the error string written by startup reconciliation
// when an entry was left open by a process that died mid-flight.
const InterruptedReason = "interrupted"

// Entry is the user-facing record of one upload's lifecycle. It shares its
// ID with the originating queue item but outlives it: terminal uploads leave
// the queue store while their history entry persists until an explicit bulk
// clear.
type Entry struct {
	ID           int64
	MediaKind    queue.MediaKind
	Status       queue.Status
	Progress     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the entry describes an upload that has not reached a
// terminal status.
func (e *Entry) Open() bool {
	return e.Status == queue.StatusPending || e.Status == queue.StatusUploading
}
