// Package history persists the user-facing upload log. Entries share IDs
// with queue items but follow a longer lifecycle: they are created once per
// upload, updated as it progresses, and removed only by an explicit bulk
// clear.
package history
