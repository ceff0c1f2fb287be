package fs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/filedrop/store"
	"go.uber.org/zap"
)

func TestPersist(t *testing.T) {
	var (
		path = filepath.Join(t.TempDir(), "filedrop.db")
		log  = zap.NewNop().Sugar()
	)

	s, err := New(Config{Path: path, SaveInterval: time.Hour}, log)
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}
	if err := s.Set("onionkey", []byte("pem"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("gone", []byte("x"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen from disk.
	s2, err := New(Config{Path: path, SaveInterval: time.Hour}, log)
	if err != nil {
		t.Fatalf("error reopening store: %v", err)
	}
	defer s2.Close()

	out, err := s2.Get("onionkey")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(out) != "pem" {
		t.Fatalf("unexpected value: %s", out)
	}
	if _, err := s2.Get("gone"); err != store.ErrNotFound {
		t.Fatalf("deleted key persisted: %v", err)
	}
}

func TestMissingFile(t *testing.T) {
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "none.db")}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	defer s.Close()

	if _, err := s.Get("x"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
