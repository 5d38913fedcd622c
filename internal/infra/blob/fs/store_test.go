package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drugsecure/internal/blob/core"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "exports/a/report.csv", want: "exports/a/report.csv"},
		{key: "exports//a/./b.png", want: "exports/a/b.png"},
		{key: "", wantErr: true},
		{key: "   ", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "exports/../../x", wantErr: true},
		{key: "exports/a.meta", wantErr: true},
	}
	for _, tc := range cases {
		got, err := cleanKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("cleanKey(%q): expected error", tc.key)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("cleanKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
		}
	}
}

func TestPutWritesSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(context.Background(), "exports/e1/report.json", strings.NewReader(`{"ok":true}`), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(info.ETag) != 64 {
		t.Fatalf("expected sha256 etag, got %q", info.ETag)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "e1", "report.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "exports", "e1"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestHeadCorruptSidecar(t *testing.T) {
	root := t.TempDir()
	s, _ := New(root)
	if err := os.WriteFile(filepath.Join(root, "bad.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := s.Head(context.Background(), "bad")
	if err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}

func TestPutCancelledContext(t *testing.T) {
	s, _ := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewDefaultRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != DefaultRoot {
		t.Fatalf("expected default root, got %s", s.Root())
	}
}
