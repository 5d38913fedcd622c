package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"drugsecure/internal/blob/core"
)

func TestStoreIsolatesCallerBuffers(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "a", strings.NewReader("abc"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	info, rc, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "abc" || info.Metadata["k"] != "v" {
		t.Fatalf("stored copy changed: %q %+v", body, info.Metadata)
	}
	info.Metadata["k"] = "mutated"
	again, _ := s.Head(ctx, "a")
	if again.Metadata["k"] != "v" {
		t.Fatalf("head leaked internal metadata")
	}
}

func TestStoreClockAndErrors(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return fixed }
	info, err := s.Put(context.Background(), "k", strings.NewReader(""), core.PutOptions{})
	if err != nil || !info.LastModified.Equal(fixed) {
		t.Fatalf("unexpected put result %+v %v", info, err)
	}
	if _, err := s.Put(context.Background(), " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := s.Head(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
