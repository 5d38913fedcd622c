package core

import (
	"context"
	"path/filepath"
	"testing"

	"drugsecure/internal/infra/persistence/memory"
	"drugsecure/internal/infra/persistence/sqlite"
)

func TestStorageConfigFromEnv(t *testing.T) {
	t.Setenv("DRUGSECURE_STORAGE_DRIVER", "postgres")
	t.Setenv("DRUGSECURE_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("DRUGSECURE_POSTGRES_DSN", "postgres://db/drugsecure")
	cfg := StorageConfigFromEnv()
	if cfg.Driver != StoragePostgres || cfg.SQLitePath != "/tmp/x.db" || cfg.PostgresDSN != "postgres://db/drugsecure" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("DRUGSECURE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "samples.db")
	store, err := OpenPersistentStoreWith(StorageConfig{SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	t.Cleanup(func() { _ = s.Close() })
	if s.Path() != path {
		t.Fatalf("expected path %s, got %s", path, s.Path())
	}

	svc := NewService(store)
	created, _, err := svc.AddSample(context.Background(), validSample("Brand D"))
	if err != nil {
		t.Fatalf("add through sqlite: %v", err)
	}
	if _, ok := store.GetSample(created.ID); !ok {
		t.Fatalf("expected stored sample %s", created.ID)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStoreWith(StorageConfig{Driver: "etcd"}, NewDefaultRulesEngine()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
