package hearingaccess

import (
	"fmt"

	"gavel/internal/hearings"
	"gavel/internal/ipc"
)

// Session bundles an Access with the cleanup for whichever backend it wraps.
type Session struct {
	Access Access
	close  func() error
}

// Close releases the session's client or store.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback prefers a live daemon socket and opens the hearing store
// directly when the dial fails, so read and transition commands keep working
// while the daemon is stopped.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*hearings.Store, error),
) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), close: client.Close}, nil
		}
	}
	if openStore == nil {
		return Session{}, fmt.Errorf("open hearing store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open hearing store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}
