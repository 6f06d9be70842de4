package testsupport

import (
	"context"
	"testing"

	"aslreport/internal/config"
	"aslreport/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SaveRun persists run for tests.
func SaveRun(t testing.TB, st *store.Store, run *store.Run) *store.Run {
	t.Helper()

	if err := st.Save(context.Background(), run); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return run
}
