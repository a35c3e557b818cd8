package entrystore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/book-expert/plomtts-service/internal/core"
)

// MemoryEntryStore is an in-process core.EntryStore. Records are lost when the
// process exits.
type MemoryEntryStore struct {
	mu       sync.Mutex
	entries  map[string]core.Entry
	watchers []*memoryWatcher
}

// memoryWatcher queues changes for one Watch call. The queue is unbounded so
// writers never block and no change is lost.
type memoryWatcher struct {
	queue []core.EntryChange // guarded by MemoryEntryStore.mu
	wake  chan struct{}
}

// NewMemory returns an empty MemoryEntryStore.
func NewMemory() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[string]core.Entry)}
}

// Save implements core.EntryStore.
func (s *MemoryEntryStore) Save(_ context.Context, entry core.Entry) error {
	if entry.ID == "" {
		return ErrEntryIDEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.ID] = entry
	stored := entry
	s.notify(core.EntryChange{EntryID: entry.ID, Entry: &stored})

	return nil
}

// Load implements core.EntryStore.
func (s *MemoryEntryStore) Load(_ context.Context, entryID string) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return core.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	return entry, nil
}

// List implements core.EntryStore. Records are ordered by id.
func (s *MemoryEntryStore) List(context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]core.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b core.Entry) int { return strings.Compare(a.ID, b.ID) })

	return entries, nil
}

// Delete implements core.EntryStore.
func (s *MemoryEntryStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entryID]; !ok {
		return nil
	}

	delete(s.entries, entryID)
	s.notify(core.EntryChange{EntryID: entryID})

	return nil
}

// Watch implements core.EntryStore. Changes are delivered in order.
func (s *MemoryEntryStore) Watch(ctx context.Context) (<-chan core.EntryChange, error) {
	watcher := &memoryWatcher{wake: make(chan struct{}, 1)}

	s.mu.Lock()
	s.watchers = append(s.watchers, watcher)
	s.mu.Unlock()

	changes := make(chan core.EntryChange)

	go func() {
		defer close(changes)
		defer s.removeWatcher(watcher)

		for {
			s.mu.Lock()
			queued := watcher.queue
			watcher.queue = nil
			s.mu.Unlock()

			for _, change := range queued {
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-watcher.wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, nil
}

func (s *MemoryEntryStore) removeWatcher(watcher *memoryWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watchers = slices.DeleteFunc(s.watchers, func(w *memoryWatcher) bool { return w == watcher })
}

// notify must be called with s.mu held.
func (s *MemoryEntryStore) notify(change core.EntryChange) {
	for _, watcher := range s.watchers {
		watcher.queue = append(watcher.queue, change)

		select {
		case watcher.wake <- struct{}{}:
		default:
		}
	}
}
