package all

import (
	"testing"

	"goldrates/internal/storage"
)

func TestAllBackendsRegistered(t *testing.T) {
	for _, kind := range []string{"mysql", "postgres", "mssql", "sqlite"} {
		if !storage.Registered(kind) {
			t.Fatalf("backend %q not registered; have %v", kind, storage.ListKinds())
		}
	}
}
