// Package ipc carries daemon control over JSON-RPC on a Unix domain socket.
// The CLI is the only intended client; request and response types are plain
// structs so the wire format stays stable across versions.
package ipc
