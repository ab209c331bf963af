// Package health probes the remote endpoint's well-known health path. The
// processor gates every drain pass on a fresh check.
package health
