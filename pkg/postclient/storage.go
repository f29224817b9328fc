package postclient

import "sync"

// Storage keys, shared with the extension's key/value store.
const (
	storageTokenKey = "pip_auth_token"
	storageUserKey  = "pip_user"
)

// Storage is the persistent local key/value store collaborator. Get returns
// false when the key is absent. Implementations must be safe for concurrent
// use.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStorage is an in-memory Storage, used in tests and as a default when
// no durable store is wired in.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
