package kv_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"todosync/internal/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	dir := t.TempDir()

	file, err := kv.OpenFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	db, err := kv.OpenSQLite(filepath.Join(dir, "state.sqlite3"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]kv.Store{
		"memory": kv.NewMemory(),
		"file":   file,
		"sqlite": db,
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get("missing"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}

			if err := s.Set("k", "v1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set("k", "v2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, ok, err := s.Get("k")
			if err != nil || !ok || got != "v2" {
				t.Errorf("expected v2, got %q ok=%v err=%v", got, ok, err)
			}

			if err := s.Delete("k"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := s.Get("k"); ok {
				t.Error("expected key to be deleted")
			}
			if err := s.Delete("k"); err != nil {
				t.Errorf("deleting an absent key should succeed, got %v", err)
			}
		})
	}
}

func TestFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, _ := kv.OpenFile(path)
	if err := s.Set("todosOrder", `["a","b"]`); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened, _ := kv.OpenFile(path)
	got, ok, err := reopened.Get("todosOrder")
	if err != nil || !ok || got != `["a","b"]` {
		t.Errorf("expected persisted value, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s, _ := kv.OpenFile(path)

	if _, _, err := s.Get("k"); err == nil {
		t.Error("expected parse error")
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("set should replace a corrupt file: %v", err)
	}
	if got, ok, _ := s.Get("k"); !ok || got != "v" {
		t.Errorf("expected v, got %q", got)
	}
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite3")
	s, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	reopened, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got, ok, _ := reopened.Get("k"); !ok || got != "v" {
		t.Errorf("expected persisted value, got %q", got)
	}
}

func TestMemory_Closed(t *testing.T) {
	s := kv.NewMemory()
	s.Close()
	if err := s.Set("k", "v"); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := kv.Open("carrier-pigeon", ""); err == nil {
		t.Error("expected error")
	}
}
