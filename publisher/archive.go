package publisher

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("archive: not found")

// Archive stores exported documents by key.
type Archive interface {
	Put(ctx context.Context, key string, doc []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// MemoryArchive keeps documents in process memory.
type MemoryArchive struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{docs: make(map[string][]byte)}
}

func (a *MemoryArchive) Put(_ context.Context, key string, doc []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[key] = append([]byte(nil), doc...)
	return nil
}

func (a *MemoryArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	doc, ok := a.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (a *MemoryArchive) List(_ context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.docs))
	for k := range a.docs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
