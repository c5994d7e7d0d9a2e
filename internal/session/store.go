// internal/session/store.go
package session

import (
	"context"
	"sync"
)

// Store persists solo state between runs. Subscribe reports values written
// under key, including writes made by other State instances sharing the
// same backing store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Subscribe(ctx context.Context, key string, fn func(value []byte)) (cancel func(), err error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	subs   map[string]map[int]func([]byte)
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
		subs: make(map[string]map[int]func([]byte)),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores value and calls the key's subscribers after releasing the lock.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), value...)
	fns := make([]func([]byte), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(append([]byte(nil), value...))
	}
	return nil
}

func (s *MemoryStore) Subscribe(_ context.Context, key string, fn func([]byte)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]func([]byte))
	}
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
	}, nil
}
