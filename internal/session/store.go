package session

import (
	"context"
	"sync"
)

// CredentialStore is the persistence layer shared by every client process.
// Watch blocks until ctx is done and calls onChange whenever a different
// writer changes the credential. A store never reports its own writes.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Watch(ctx context.Context, onChange func()) error
}

// MemoryBackend holds one credential shared by any number of MemoryStore
// handles, each standing in for a separate client process.
type MemoryBackend struct {
	mu       sync.Mutex
	value    string
	nextID   int
	watchers map[int]map[chan struct{}]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{watchers: make(map[int]map[chan struct{}]struct{})}
}

// Store returns a new handle on the backend.
func (b *MemoryBackend) Store() *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return &MemoryStore{backend: b, id: b.nextID}
}

func (b *MemoryBackend) write(writer int, value string) {
	b.mu.Lock()
	b.value = value
	var targets []chan struct{}
	for id, chans := range b.watchers {
		if id == writer {
			continue
		}
		for ch := range chans {
			targets = append(targets, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type MemoryStore struct {
	backend *MemoryBackend
	id      int
}

func (s *MemoryStore) Load(_ context.Context) (string, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	return s.backend.value, nil
}

func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.backend.write(s.id, token)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.backend.write(s.id, "")
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, onChange func()) error {
	ch := make(chan struct{}, 1)
	b := s.backend
	b.mu.Lock()
	if b.watchers[s.id] == nil {
		b.watchers[s.id] = make(map[chan struct{}]struct{})
	}
	b.watchers[s.id][ch] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.watchers[s.id], ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			onChange()
		}
	}
}
