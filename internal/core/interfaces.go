// Package core defines the core business logic and interfaces for the PlomTTS service.
package core

import "context"

// SpeechClient is the remote PlomTTS server as seen by the rest of the service.
// Implementations are expected to honour the context deadline on every call.
type SpeechClient interface {
	Health(ctx context.Context) error
	ListVoices(ctx context.Context) ([]Voice, error)
	GenerateSpeech(ctx context.Context, text, voiceID string, params SynthesisParameters) ([]byte, error)
}

// ClientFactory builds a SpeechClient for a server address.
type ClientFactory func(serverURL string) SpeechClient

// ObjectStore is where synthesized clips are published.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

// EntryChange is delivered by EntryStore.Watch whenever a record is written or removed.
type EntryChange struct {
	EntryID string
	Entry   *Entry // nil when the record was deleted
}

// EntryStore persists configuration records and reports changes to them.
type EntryStore interface {
	Save(ctx context.Context, entry Entry) error
	Load(ctx context.Context, entryID string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, entryID string) error
	Watch(ctx context.Context) (<-chan EntryChange, error)
}
