package fs

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/knadh/filedrop/store"
	"go.uber.org/zap"
)

// Config represents the file store config structure.
type Config struct {
	Path         string        `koanf:"path"`
	SaveInterval time.Duration `koanf:"save_interval"`
}

// File represents the file implementation of the Store interface.
type File struct {
	cfg   *Config
	data  map[string]*item
	mu    sync.Mutex
	dirty bool
	log   *zap.SugaredLogger
	stop  chan struct{}
}

type item struct {
	Data   []byte
	Expire time.Time
}

// New returns a new file store, loading existing data from disk.
func New(cfg Config, log *zap.SugaredLogger) (*File, error) {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = time.Minute
	}
	store := &File{
		cfg:  &cfg,
		data: map[string]*item{},
		log:  log,
		stop: make(chan struct{}),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	go store.watch()
	return store, nil
}

// watch the store to clean it up and periodically write it to disk.
func (m *File) watch() {
	t := time.NewTicker(m.cfg.SaveInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.cleanup()
			if err := m.save(); err != nil {
				m.log.Errorf("error writing file %q: %v", m.cfg.Path, err)
			}
		case <-m.stop:
			return
		}
	}
}

// cleanup the store to removes expired items.
func (m *File) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, it := range m.data {
		if it.expired(now) {
			delete(m.data, k)
			m.dirty = true
		}
	}
}

// load the data from the file system.
func (m *File) load() error {
	b, err := os.ReadFile(m.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}

	var x struct {
		Data map[string]*item
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	if x.Data != nil {
		m.data = x.Data
	}
	return nil
}

// save the data to the file system if it has changed.
func (m *File) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}
	b, err := json.Marshal(struct {
		Data map[string]*item
	}{m.data})
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.cfg.Path, b, 0600); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// Close stops the background writer and flushes pending changes.
func (m *File) Close() error {
	close(m.stop)
	return m.save()
}

// Get value from a key.
func (m *File) Get(key string) ([]byte, error) {
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
func (m *File) Set(key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := &item{Data: make([]byte, len(data))}
	copy(it.Data, data)
	if ttl > 0 {
		it.Expire = time.Now().Add(ttl)
	}
	m.data[key] = it
	m.dirty = true
	return nil
}

// Delete a key.
func (m *File) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.dirty = true
	}
	return nil
}

func (it *item) expired(now time.Time) bool {
	return !it.Expire.IsZero() && it.Expire.Before(now)
}
