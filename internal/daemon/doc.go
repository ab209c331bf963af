// Package daemon wires the queue store, history log, and upload processor
// into a single supervised unit. A flock-based lock file keeps a second
// daemon instance from opening the same databases.
package daemon
