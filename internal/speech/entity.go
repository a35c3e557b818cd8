// Package speech turns text into audio for one configured PlomTTS entry.
package speech

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/voices"
)

// AudioFormat is the format tag attached to every synthesized clip.
const AudioFormat = "mp3"

// Device information reported for every entity.
const (
	Manufacturer = "PlomTTS"
	Model        = "Fish Speech TTS"
	// DefaultLanguage is used when the caller does not name one.
	DefaultLanguage = "en"
)

// ErrNoVoiceSelected is returned when neither the request nor the entry names a voice.
var ErrNoVoiceSelected = errors.New("no voice selected")

// SynthesisFailedError wraps any failure of the PlomTTS server during synthesis.
type SynthesisFailedError struct {
	Err error
}

func (e *SynthesisFailedError) Error() string {
	return fmt.Sprintf("TTS generation failed: %v", e.Err)
}

func (e *SynthesisFailedError) Unwrap() error {
	return e.Err
}

var supportedLanguages = []string{"en", "zh", "ja", "de", "fr", "ko", "es"}

var supportedOptions = []string{
	core.OptionVoice,
	core.OptionMaxNewTokens,
	core.OptionChunkLength,
	core.OptionTopP,
	core.OptionRepetitionPenalty,
	core.OptionTemperature,
	core.OptionSeed,
}

// Options are the per-request settings. Unset fields fall back to the entry.
type Options struct {
	Voice string `json:"voice,omitempty"`
	core.ParameterOverrides
}

// Audio is a synthesized clip.
type Audio struct {
	Format string
	Data   []byte
}

// DeviceInfo describes the device an entity belongs to.
type DeviceInfo struct {
	Identifier   [2]string `json:"identifier"`
	Name         string    `json:"name"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
}

// Entity is the speech provider of one configuration record.
type Entity struct {
	client         core.SpeechClient
	log            *logger.Logger
	entryID        string
	name           string
	voices         []core.Voice
	defaultVoiceID string
	stored         core.ParameterOverrides
}

// NewEntity fetches the voice catalogue of the entry's server and prepares an
// entity. The configured voice, or the first voice by name, becomes the default
// and is listed first.
func NewEntity(ctx context.Context, client core.SpeechClient, entry core.Entry, log *logger.Logger) (*Entity, error) {
	catalog, err := voices.Fetch(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to load voices for entry %s: %w", entry.ID, err)
	}

	return FromCatalog(client, entry, catalog, log), nil
}

// FromCatalog prepares an entity from a catalogue already sorted by voices.Fetch.
func FromCatalog(client core.SpeechClient, entry core.Entry, catalog []core.Voice, log *logger.Logger) *Entity {
	defaultVoiceID := voices.DefaultVoiceID(catalog, entry.Options.Voice)

	return &Entity{
		client:         client,
		log:            log,
		entryID:        entry.ID,
		name:           entry.Title,
		voices:         voices.PromoteDefault(catalog, defaultVoiceID),
		defaultVoiceID: defaultVoiceID,
		stored:         entry.Options.ParameterOverrides,
	}
}

// UniqueID returns the id of the entry the entity belongs to.
func (e *Entity) UniqueID() string { return e.entryID }

// Name returns the entry title.
func (e *Entity) Name() string { return e.name }

// DefaultVoiceID returns the voice used when a request names none.
func (e *Entity) DefaultVoiceID() string { return e.defaultVoiceID }

// SupportedLanguages returns the language codes the server accepts.
func (e *Entity) SupportedLanguages() []string { return slices.Clone(supportedLanguages) }

// DefaultLanguage returns "en".
func (e *Entity) DefaultLanguage() string { return DefaultLanguage }

// SupportedOptions returns the per-request option keys.
func (e *Entity) SupportedOptions() []string { return slices.Clone(supportedOptions) }

// SupportedVoices returns the catalogue with the default voice first. Every
// voice is offered for every language.
func (e *Entity) SupportedVoices(string) []core.Voice { return slices.Clone(e.voices) }

// DeviceInfo returns the device description of the entry.
func (e *Entity) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifier:   [2]string{core.Domain, e.entryID},
		Name:         e.name,
		Manufacturer: Manufacturer,
		Model:        Model,
	}
}

// GetAudio synthesizes message. The language is accepted but not forwarded;
// the server picks the language from the text.
func (e *Entity) GetAudio(ctx context.Context, message, language string, options Options) (Audio, error) {
	voiceID := options.Voice
	if voiceID == "" {
		voiceID = e.defaultVoiceID
	}

	if voiceID == "" {
		e.log.Error("Entry %s: no voice selected", e.entryID)

		return Audio{}, ErrNoVoiceSelected
	}

	params := core.Resolve(core.DefaultParameters(), e.stored, options.ParameterOverrides)

	data, err := e.client.GenerateSpeech(ctx, message, voiceID, params)
	if err != nil {
		e.log.Error("Entry %s: synthesis with voice %s (%s) failed: %v", e.entryID, voiceID, language, err)

		return Audio{}, &SynthesisFailedError{Err: err}
	}

	return Audio{Format: AudioFormat, Data: data}, nil
}
