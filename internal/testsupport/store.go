package testsupport

import (
	"testing"

	"apogee/internal/config"
	"apogee/internal/store"
)

// MustOpenStore opens the state store for the supplied config and fails the
// test on error.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}
