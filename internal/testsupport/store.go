package testsupport

import (
	"context"
	"testing"

	"gavel/internal/config"
	"gavel/internal/hearings"
)

// MustOpenStore opens a hearings.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *hearings.Store {
	t.Helper()

	store, err := hearings.Open(cfg)
	if err != nil {
		t.Fatalf("hearings.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewHearing creates a hearing record for tests using the provided store.
func NewHearing(t testing.TB, store *hearings.Store, stateCode, title, sourceURL string) *hearings.Hearing {
	t.Helper()

	hearing, _, err := store.NewHearing(context.Background(), stateCode, title, "", sourceURL)
	if err != nil {
		t.Fatalf("store.NewHearing: %v", err)
	}
	return hearing
}
