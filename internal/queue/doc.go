// Package queue persists pending uploads in SQLite. The store holds only
// items that still require action: completed and failed items are removed,
// with the history log keeping their user-facing record.
package queue
