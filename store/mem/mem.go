package mem

import (
	"sync"
	"time"

	"github.com/knadh/filedrop/store"
)

// Config represents the InMemory store config structure.
type Config struct {
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// InMemory represents the in-memory implementation of the Store interface.
type InMemory struct {
	cfg  *Config
	data map[string]item
	mu   sync.Mutex
}

type item struct {
	Data   []byte
	Expire time.Time
}

// New returns a new in-memory store.
func New(cfg Config) (*InMemory, error) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	store := &InMemory{
		cfg:  &cfg,
		data: map[string]item{},
	}
	go store.watch()
	return store, nil
}

// watch the store to clean it up.
func (m *InMemory) watch() {
	t := time.NewTicker(m.cfg.CleanupInterval)
	defer t.Stop()
	for range t.C {
		m.cleanup()
	}
}

// cleanup the store to removes expired items.
func (m *InMemory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, it := range m.data {
		if it.expired(now) {
			delete(m.data, k)
		}
	}
}

// Get value from a key.
func (m *InMemory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.data[key]
	if !ok || it.expired(time.Now()) {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(it.Data))
	copy(out, it.Data)
	return out, nil
}

// Set a value.
func (m *InMemory) Set(key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := item{Data: make([]byte, len(data))}
	copy(it.Data, data)
	if ttl > 0 {
		it.Expire = time.Now().Add(ttl)
	}
	m.data[key] = it
	return nil
}

// Delete a key.
func (m *InMemory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (it item) expired(now time.Time) bool {
	return !it.Expire.IsZero() && it.Expire.Before(now)
}
