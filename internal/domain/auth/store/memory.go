package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryItem struct {
	value     string
	expiresAt *time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return it.expiresAt != nil && now.After(*it.expiresAt)
}

type memoryStore struct {
	items       map[string]memoryItem
	mutex       sync.Mutex
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory ephemeral store for development and tests.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]memoryItem),
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) cleanupExpired() {
	now := time.Now()
	s.mutex.Lock()
	for key, item := range s.items {
		if item.expired(now) {
			delete(s.items, key)
		}
	}
	s.mutex.Unlock()
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[key]
	if !ok || item.expired(time.Now()) {
		return "", false, nil
	}
	return item.value, true, nil
}

func (s *memoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		item.expiresAt = &exp
	}

	s.mutex.Lock()
	s.items[key] = item
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[key]
	if !ok || item.expired(now) {
		// First attempt in the window creates the counter and arms the
		// expiry; later increments leave the deadline untouched.
		item = memoryItem{value: "0"}
		if ttl > 0 {
			exp := now.Add(ttl)
			item.expiresAt = &exp
		}
	}

	count, _ := strconv.ParseInt(item.value, 10, 64)
	count++
	item.value = strconv.FormatInt(count, 10)
	s.items[key] = item
	return count, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[key]
	return ok && !item.expired(time.Now()), nil
}

func (s *memoryStore) Ping(context.Context) error {
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	active := 0
	for _, item := range s.items {
		if !item.expired(now) {
			active++
		}
	}
	return map[string]any{
		"type":   "memory",
		"total":  len(s.items),
		"active": active,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
