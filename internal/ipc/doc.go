// Package ipc provides JSON-RPC daemon control over a Unix domain socket.
// The CLI is its primary consumer; payload types mirror the HTTP API DTOs.
package ipc
