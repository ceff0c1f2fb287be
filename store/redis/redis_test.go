package redis

import (
	"os"
	"testing"
	"time"

	"github.com/knadh/filedrop/store"
)

// These tests need a live Redis server whose address is set in
// FILEDROP_TEST_REDIS.
func newTestStore(t *testing.T) *Redis {
	addr := os.Getenv("FILEDROP_TEST_REDIS")
	if addr == "" {
		t.Skip("FILEDROP_TEST_REDIS not set")
	}

	r, err := New(Config{
		Address:     addr,
		ActiveConns: 2,
		IdleConns:   2,
		Timeout:     time.Second * 3,
		Prefix:      "filedrop:test:",
	})
	if err != nil {
		t.Fatalf("error connecting to redis: %v", err)
	}
	return r
}

func TestSetGetDelete(t *testing.T) {
	r := newTestStore(t)
	defer r.Close()

	if err := r.Set("seen:a", []byte("now"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	b, err := r.Get("seen:a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(b) != "now" {
		t.Fatalf("unexpected value: %s", b)
	}

	if err := r.Delete("seen:a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := r.Get("seen:a"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
