package mem

import (
	"testing"
	"time"

	"github.com/knadh/filedrop/store"
)

func TestSetGet(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}

	val := []byte("2026-10-19T10:00:00Z")
	if err := s.Set("seen:a", val, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutating the input must not affect the stored value.
	val[0] = 'X'

	out, err := s.Get("seen:a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(out) != "2026-10-19T10:00:00Z" {
		t.Fatalf("unexpected value: %s", out)
	}

	if err := s.Delete("seen:a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("seen:a"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	s, _ := New(Config{CleanupInterval: time.Hour})

	if err := s.Set("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Get("k"); err != nil {
		t.Fatalf("expected key before expiry: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := s.Get("k"); err != store.ErrNotFound {
		t.Fatalf("expected expired key to be gone, got %v", err)
	}

	s.cleanup()
	if len(s.data) != 0 {
		t.Fatalf("cleanup left %d items", len(s.data))
	}
}
