// Package api defines transport-friendly DTOs and thin service layers over
// the hearing, review, pipeline, and schedule domains. The daemon's HTTP
// surface and the IPC control channel both speak these types.
package api
