// Package integration owns the runtime state of every configured PlomTTS entry:
// its client and, once the voice catalogue loaded, its speech entity.
package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/metrics"
	"github.com/book-expert/plomtts-service/internal/speech"
	"github.com/book-expert/plomtts-service/internal/voices"
)

// Retry delays for entries whose server was not ready. The delay doubles after
// every round that leaves an entry pending.
const (
	DefaultRetryBackoffBase = 5 * time.Second
	DefaultRetryBackoffMax  = 5 * time.Minute
)

var (
	// ErrEntryNotReady is returned by SetupEntry when the server is not healthy.
	// The caller may retry later.
	ErrEntryNotReady = errors.New("entry not ready")
	// ErrEntryNotLoaded is returned when no runtime exists for an entry id.
	ErrEntryNotLoaded = errors.New("entry not loaded")
	// ErrNoEntity is returned when the entry is loaded but its entity could not be built.
	ErrNoEntity = errors.New("entry has no speech entity")
)

type runtime struct {
	entry  core.Entry
	client core.SpeechClient
	entity *speech.Entity
}

// Integration tracks loaded entries.
type Integration struct {
	newClient    core.ClientFactory
	log          *logger.Logger
	metrics      *metrics.Metrics
	defaultVoice string

	retryBase time.Duration
	retryMax  time.Duration

	mu      sync.RWMutex
	entries map[string]*runtime
	pending map[string]core.Entry
}

// New creates an Integration. defaultVoice is used for entries that name no
// voice; it may be empty. m may be nil.
func New(newClient core.ClientFactory, log *logger.Logger, m *metrics.Metrics, defaultVoice string) *Integration {
	return &Integration{
		newClient:    newClient,
		log:          log,
		metrics:      m,
		defaultVoice: defaultVoice,
		retryBase:    DefaultRetryBackoffBase,
		retryMax:     DefaultRetryBackoffMax,
		entries:      make(map[string]*runtime),
		pending:      make(map[string]core.Entry),
	}
}

// SetRetryBackoff changes the delays Watch waits between setup retries.
// Call it before Watch.
func (i *Integration) SetRetryBackoff(base, maxDelay time.Duration) {
	i.retryBase = base
	i.retryMax = max(base, maxDelay)
}

// SetupEntry connects to the entry's server and loads its entity. A failed
// health check returns ErrEntryNotReady, loads nothing and queues the entry for
// the retries run by Watch. A failed catalogue fetch is logged and leaves the
// entry loaded without an entity.
func (i *Integration) SetupEntry(ctx context.Context, entry core.Entry) error {
	client := i.newClient(entry.Data.ServerURL)

	err := client.Health(ctx)
	if err != nil {
		i.mu.Lock()
		i.pending[entry.ID] = entry
		i.mu.Unlock()

		return fmt.Errorf("%w: %s: %w", ErrEntryNotReady, entry.Data.ServerURL, err)
	}

	rt := &runtime{entry: entry, client: client}

	catalog, err := voices.Fetch(ctx, client)
	if err != nil {
		i.log.Error("Failed to set up PlomTTS entity for entry %s: %v", entry.ID, err)
	} else {
		if entry.Options.Voice == "" {
			entry.Options.Voice = i.serviceVoice(entry.ID, catalog)
		}

		rt.entity = speech.FromCatalog(client, entry, catalog, i.log)
	}

	i.mu.Lock()
	delete(i.pending, entry.ID)
	i.entries[entry.ID] = rt
	loaded := len(i.entries)
	i.mu.Unlock()

	i.metrics.SetLoadedEntries(loaded)
	i.log.Info("Entry %s set up against %s", entry.ID, entry.Data.ServerURL)

	return nil
}

// serviceVoice returns the configured service default when the catalogue
// offers it, so the entity falls back to the first voice by name otherwise.
func (i *Integration) serviceVoice(entryID string, catalog []core.Voice) string {
	if i.defaultVoice == "" {
		return ""
	}

	if !voices.Contains(catalog, i.defaultVoice) {
		i.log.Warn("Entry %s: default voice %s is not offered by the server, using the first voice", entryID,
			i.defaultVoice)

		return ""
	}

	return i.defaultVoice
}

// UnloadEntry drops the runtime of an entry and cancels its pending retry.
// Unloading an unknown entry is a no-op.
func (i *Integration) UnloadEntry(entryID string) {
	i.mu.Lock()
	_, ok := i.entries[entryID]
	delete(i.entries, entryID)
	delete(i.pending, entryID)
	loaded := len(i.entries)
	i.mu.Unlock()

	if ok {
		i.metrics.SetLoadedEntries(loaded)
		i.log.Info("Entry %s unloaded", entryID)
	}
}

// ReloadEntry unloads and sets up entry again, picking up edited options.
func (i *Integration) ReloadEntry(ctx context.Context, entry core.Entry) error {
	i.UnloadEntry(entry.ID)

	return i.SetupEntry(ctx, entry)
}

// Entity returns the speech entity of a loaded entry.
func (i *Integration) Entity(entryID string) (*speech.Entity, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rt, ok := i.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotLoaded, entryID)
	}

	if rt.entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntity, entryID)
	}

	return rt.entity, nil
}

// Loaded returns the ids of the loaded entries, sorted.
func (i *Integration) Loaded() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	ids := make([]string, 0, len(i.entries))
	for id := range i.entries {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Pending returns the ids of the entries waiting for their server, sorted.
func (i *Integration) Pending() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	ids := make([]string, 0, len(i.pending))
	for id := range i.pending {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// RetryPending sets up every pending entry again and returns how many are
// still not ready.
func (i *Integration) RetryPending(ctx context.Context) int {
	i.mu.RLock()
	entries := make([]core.Entry, 0, len(i.pending))

	for _, entry := range i.pending {
		entries = append(entries, entry)
	}
	i.mu.RUnlock()

	for _, entry := range entries {
		err := i.SetupEntry(ctx, entry)
		if err != nil {
			i.log.Warn("Entry %s still not ready: %v", entry.ID, err)
		}
	}

	return len(i.Pending())
}

// SetupAll sets up every stored entry. Entries that are not ready are logged
// and left pending.
func (i *Integration) SetupAll(ctx context.Context, store core.EntryStore) error {
	entries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	for _, entry := range entries {
		setupErr := i.SetupEntry(ctx, entry)
		if setupErr != nil {
			i.log.Warn("Entry %s not set up: %v", entry.ID, setupErr)
		}
	}

	return nil
}

// Watch subscribes to store, sets up every stored entry and then applies
// changes until ctx is cancelled: a saved record is reloaded and a deleted one
// unloaded. Pending entries are retried with exponential backoff.
func (i *Integration) Watch(ctx context.Context, store core.EntryStore) error {
	changes, err := store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch entries: %w", err)
	}

	err = i.SetupAll(ctx, store)
	if err != nil {
		return err
	}

	delay := i.retryBase
	timer := time.NewTimer(delay)

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}

			i.apply(ctx, change)
		case <-timer.C:
			if i.RetryPending(ctx) > 0 {
				delay = min(delay*2, i.retryMax)
			} else {
				delay = i.retryBase
			}

			timer.Reset(delay)
		}
	}
}

func (i *Integration) apply(ctx context.Context, change core.EntryChange) {
	if change.Entry == nil {
		i.UnloadEntry(change.EntryID)

		return
	}

	err := i.ReloadEntry(ctx, *change.Entry)
	if err != nil {
		i.log.Warn("Entry %s not reloaded: %v", change.EntryID, err)
	}
}
