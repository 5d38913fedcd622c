package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"drugsecure/pkg/domain"
)

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "drugsecure.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, brand := range []string{"Brand D", "Brand E"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateSample(domain.Sample{Brand: brand, BulkDensity: 0.5, TapDensity: 0.6})
			return err
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteSample("C-002")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Path() != path || store.DB() == nil {
		t.Fatalf("unexpected accessors")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	samples := reopened.ListSamples()
	if len(samples) != 1 || samples[0].ID != "C-001" || samples[0].Brand != "Brand D" {
		t.Fatalf("unexpected reloaded samples: %+v", samples)
	}
	var next string
	if _, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateSample(domain.Sample{Brand: "Brand F", BulkDensity: 0.5, TapDensity: 0.6})
		next = created.ID
		return err
	}); err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if next != "C-003" {
		t.Fatalf("expected sequence to survive reopen, got %s", next)
	}
}

func TestSQLiteStoreSkipsPersistOnError(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "db.sqlite"), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteSample("C-999")
	})
	if err == nil {
		t.Fatalf("expected error for missing sample")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no snapshot rows after failed transaction, got %d", count)
	}
}

func TestSQLiteStoreRollsBackMemoryWhenPersistFails(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "db.sqlite"), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{Brand: "Brand D", BulkDensity: 0.5, TapDensity: 0.6})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{Brand: "Brand E", BulkDensity: 0.5, TapDensity: 0.6})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "persist sqlite state") {
		t.Fatalf("expected persist error, got %v", err)
	}
	samples := store.ListSamples()
	if len(samples) != 1 || samples[0].ID != "C-001" {
		t.Fatalf("expected memory rolled back to one sample, got %+v", samples)
	}
	if store.Revision() < 2 {
		t.Fatalf("expected revision to move past the failed commit, got %d", store.Revision())
	}
}
