// Package daemon hosts the long-running gavel process: it enforces
// single-instance execution, reclaims interrupted work at startup, runs the
// schedule timer, and serves the HTTP control API.
package daemon
