package store

import (
	"errors"
	"time"
)

// Store represents a backend key/value store for auxiliary server data
// such as the onion service key and last-seen records. Presence and room
// state are never written to it.
type Store interface {
	// Get returns the value of a key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set sets a key's value. A ttl of 0 never expires.
	Set(key string, data []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(key string) error
}

// ErrNotFound indicates that the requested key was not found.
var ErrNotFound = errors.New("key not found")
