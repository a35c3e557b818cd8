// Package entrystore persists configuration records in a NATS JetStream key-value bucket.
package entrystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/nats-io/nats.go"
)

// ErrEntryNotFound is returned when no record exists for an entry id.
var ErrEntryNotFound = errors.New("entry not found")

// ErrEntryIDEmpty is returned when a record without id is saved.
var ErrEntryIDEmpty = errors.New("entry id cannot be empty")

// NatsEntryStore implements core.EntryStore on a JetStream key-value bucket.
// Records are stored as JSON under their entry id.
type NatsEntryStore struct {
	bucket string
	kv     nats.KeyValue
	log    *logger.Logger
}

// New binds to bucketName, creating the bucket when it does not exist yet.
func New(jetstreamContext nats.JetStreamContext, bucketName string, log *logger.Logger) (*NatsEntryStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucketName,
			Description: "PlomTTS configuration entries.",
			History:     1,
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to bind to key-value bucket '%s': %w", bucketName, err)
	}

	return &NatsEntryStore{bucket: bucketName, kv: kv, log: log}, nil
}

// Save writes entry, replacing any previous record with the same id.
func (s *NatsEntryStore) Save(_ context.Context, entry core.Entry) error {
	if entry.ID == "" {
		return ErrEntryIDEmpty
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry '%s': %w", entry.ID, err)
	}

	_, err = s.kv.Put(entry.ID, data)
	if err != nil {
		return fmt.Errorf("failed to put entry '%s' to bucket '%s': %w", entry.ID, s.bucket, err)
	}

	return nil
}

// Load reads the record for entryID.
func (s *NatsEntryStore) Load(_ context.Context, entryID string) (core.Entry, error) {
	kvEntry, err := s.kv.Get(entryID)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return core.Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}

	if err != nil {
		return core.Entry{}, fmt.Errorf("failed to get entry '%s' from bucket '%s': %w", entryID, s.bucket, err)
	}

	return decodeEntry(kvEntry.Value())
}

// List returns every stored record.
func (s *NatsEntryStore) List(ctx context.Context) ([]core.Entry, error) {
	keys, err := s.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list keys of bucket '%s': %w", s.bucket, err)
	}

	entries := make([]core.Entry, 0, len(keys))

	for _, key := range keys {
		entry, loadErr := s.Load(ctx, key)
		if errors.Is(loadErr, ErrEntryNotFound) {
			continue
		}

		if loadErr != nil {
			return nil, loadErr
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Delete removes the record for entryID. Deleting a missing record is not an error.
func (s *NatsEntryStore) Delete(_ context.Context, entryID string) error {
	err := s.kv.Delete(entryID)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete entry '%s' from bucket '%s': %w", entryID, s.bucket, err)
	}

	return nil
}

// Watch reports every change made after the call. Records that do not decode
// are logged and skipped. The channel is closed when ctx is cancelled.
func (s *NatsEntryStore) Watch(ctx context.Context) (<-chan core.EntryChange, error) {
	watcher, err := s.kv.WatchAll(nats.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to watch bucket '%s': %w", s.bucket, err)
	}

	changes := make(chan core.EntryChange)

	go func() {
		defer close(changes)
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case kvEntry, ok := <-watcher.Updates():
				if !ok {
					return
				}

				if kvEntry == nil {
					continue
				}

				change := core.EntryChange{EntryID: kvEntry.Key()}

				if kvEntry.Operation() == nats.KeyValuePut {
					entry, decodeErr := decodeEntry(kvEntry.Value())
					if decodeErr != nil {
						s.log.Error("Skipping change to entry '%s' in bucket '%s': %v", kvEntry.Key(), s.bucket, decodeErr)

						continue
					}

					change.Entry = &entry
				}

				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changes, nil
}

func decodeEntry(data []byte) (core.Entry, error) {
	var entry core.Entry

	err := json.Unmarshal(data, &entry)
	if err != nil {
		return core.Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return entry, nil
}
