package persistence_test

import (
	"path/filepath"
	"testing"

	"github.com/0xShonen/subtensor/internal/persistence"
)

func TestBoltGuardStore_MarksAndRemembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.db")

	guard, err := persistence.OpenGuardStore(path)
	if err != nil {
		t.Fatalf("open guard store: %v", err)
	}

	name := []byte("migrate_network_immunity_period")
	run, err := guard.HasRun(name)
	if err != nil {
		t.Fatalf("HasRun: %v", err)
	}
	if run {
		t.Fatal("fresh store must report not run")
	}

	if err := guard.MarkRun(name); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}
	run, err = guard.HasRun(name)
	if err != nil {
		t.Fatalf("HasRun after mark: %v", err)
	}
	if !run {
		t.Fatal("marked migration must report run")
	}
	if err := guard.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Survives reopen.
	guard, err = persistence.OpenGuardStore(path)
	if err != nil {
		t.Fatalf("reopen guard store: %v", err)
	}
	defer guard.Close()

	run, err = guard.HasRun(name)
	if err != nil {
		t.Fatalf("HasRun after reopen: %v", err)
	}
	if !run {
		t.Fatal("guard state must survive reopen")
	}
	run, err = guard.HasRun([]byte("some_other_migration"))
	if err != nil {
		t.Fatalf("HasRun other: %v", err)
	}
	if run {
		t.Fatal("unknown migration must report not run")
	}
}
