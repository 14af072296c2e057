package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmgilman/go/errors"
)

// MemoryStore is an in-memory RecordStore used by tests and local runs.
// Records are kept JSON-encoded so Decode behaves like a real store's
// round-trip rather than handing back shared pointers.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string][]byte
	watchers    map[string][]chan RecordChange
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
		watchers:    make(map[string][]chan RecordChange),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string, out any) error {
	s.mu.Lock()
	raw, ok := s.collections[collection][key]
	s.mu.Unlock()
	if !ok {
		return errors.Newf(errors.CodeNotFound, "no record %s/%s", collection, key)
	}
	return json.Unmarshal(raw, out)
}

func (s *MemoryStore) Set(ctx context.Context, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	s.mu.Lock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][key] = raw
	watchers := append([]chan RecordChange(nil), s.watchers[collection]...)
	s.mu.Unlock()

	for _, w := range watchers {
		w <- RecordChange{Kind: ChangeSet, Key: key, Decode: func(out any) error {
			return json.Unmarshal(raw, out)
		}}
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	_, existed := s.collections[collection][key]
	delete(s.collections[collection], key)
	watchers := append([]chan RecordChange(nil), s.watchers[collection]...)
	s.mu.Unlock()

	if existed {
		for _, w := range watchers {
			w <- RecordChange{Kind: ChangeDelete, Key: key}
		}
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string, fn func(key string, decode func(out any) error) error) error {
	s.mu.Lock()
	snapshot := make(map[string][]byte, len(s.collections[collection]))
	for k, v := range s.collections[collection] {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for key, raw := range snapshot {
		data := raw
		if err := fn(key, func(out any) error { return json.Unmarshal(data, out) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) CompareAndSet(ctx context.Context, collection, key string, expected int64, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	s.mu.Lock()
	current := int64(0)
	if stored, ok := s.collections[collection][key]; ok {
		var versioned struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(stored, &versioned); err == nil {
			current = versioned.Version
		}
	}
	if current != expected {
		s.mu.Unlock()
		return errors.Newf(errors.CodeConflict, "record %s/%s is at version %d, expected %d", collection, key, current, expected)
	}
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][key] = raw
	watchers := append([]chan RecordChange(nil), s.watchers[collection]...)
	s.mu.Unlock()

	for _, w := range watchers {
		w <- RecordChange{Kind: ChangeSet, Key: key, Decode: func(out any) error {
			return json.Unmarshal(raw, out)
		}}
	}
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, collection string) (<-chan RecordChange, error) {
	ch := make(chan RecordChange, 64)
	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		ws := s.watchers[collection]
		for i, w := range ws {
			if w == ch {
				s.watchers[collection] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// MemoryBlobStore is an in-memory BlobStore for tests.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, objectName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = append([]byte(nil), data...)
	return "memory://" + objectName, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

// Object returns the stored bytes for assertions in tests.
func (s *MemoryBlobStore) Object(objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[objectName]
	return raw, ok
}

// Len reports the number of stored objects.
func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
