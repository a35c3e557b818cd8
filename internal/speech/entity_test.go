package speech_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/speech"
	"github.com/book-expert/plomtts-service/internal/tts"
	"github.com/book-expert/plomtts-service/internal/tts/ttstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = core.Voice{ID: "v1", Name: "Alice"}
	bob   = core.Voice{ID: "v2", Name: "Bob"}
	carol = core.Voice{ID: "v3", Name: "Carol"}
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "speech-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newEntity(t *testing.T, client *ttstest.FakeClient, options core.EntryOptions) *speech.Entity {
	t.Helper()

	entity, err := speech.NewEntity(context.Background(), client, core.Entry{
		ID:      "entry-1",
		Title:   core.DefaultTitle,
		Data:    core.EntryData{ServerURL: "http://localhost:8420"},
		Options: options,
	}, newTestLogger(t))
	require.NoError(t, err)

	return entity
}

func ptr[T any](v T) *T { return &v }

func TestNewEntity_DefaultVoice(t *testing.T) {
	t.Parallel()

	configured := newEntity(t, ttstest.NewFakeClient(carol, alice, bob), core.EntryOptions{Voice: "v2"})
	assert.Equal(t, "v2", configured.DefaultVoiceID())
	assert.Equal(t, []core.Voice{bob, alice, carol}, configured.SupportedVoices("en"))

	fallback := newEntity(t, ttstest.NewFakeClient(carol, bob, alice), core.EntryOptions{})
	assert.Equal(t, "v1", fallback.DefaultVoiceID())
	assert.Equal(t, []core.Voice{alice, bob, carol}, fallback.SupportedVoices("de"))
}

func TestNewEntity_FetchFailure(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice)
	client.SetUnreachable(true)

	_, err := speech.NewEntity(context.Background(), client, core.Entry{ID: "entry-1"}, newTestLogger(t))
	require.Error(t, err)
	assert.True(t, tts.IsConnectionError(err))
}

func TestEntity_Metadata(t *testing.T) {
	t.Parallel()

	entity := newEntity(t, ttstest.NewFakeClient(alice), core.EntryOptions{})

	assert.Equal(t, []string{"en", "zh", "ja", "de", "fr", "ko", "es"}, entity.SupportedLanguages())
	assert.Equal(t, "en", entity.DefaultLanguage())
	assert.Equal(t, []string{
		"voice", "max_new_tokens", "chunk_length", "top_p", "repetition_penalty", "temperature", "seed",
	}, entity.SupportedOptions())
	assert.Equal(t, "entry-1", entity.UniqueID())
	assert.Equal(t, speech.DeviceInfo{
		Identifier:   [2]string{"plomtts", "entry-1"},
		Name:         "PlomTTS",
		Manufacturer: "PlomTTS",
		Model:        "Fish Speech TTS",
	}, entity.DeviceInfo())
}

func TestEntity_GetAudio(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice, bob)
	client.Audio = []byte{0xFF, 0xFB, 0x90, 0x00}
	entity := newEntity(t, client, core.EntryOptions{
		Voice:              "v1",
		ParameterOverrides: core.ParameterOverrides{Temperature: ptr(0.9)},
	})

	audio, err := entity.GetAudio(context.Background(), "Hello world", "en", speech.Options{})
	require.NoError(t, err)
	assert.Equal(t, speech.Audio{Format: "mp3", Data: []byte{0xFF, 0xFB, 0x90, 0x00}}, audio)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello world", calls[0].Text)
	assert.Equal(t, "v1", calls[0].VoiceID)

	expected := core.DefaultParameters()
	expected.Temperature = 0.9
	assert.Equal(t, expected, calls[0].Params)
}

func TestEntity_GetAudioCallOverrides(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice, bob)
	entity := newEntity(t, client, core.EntryOptions{
		Voice:              "v1",
		ParameterOverrides: core.ParameterOverrides{Temperature: ptr(0.9), Seed: ptr(5)},
	})

	_, err := entity.GetAudio(context.Background(), "Hi", "fr", speech.Options{
		Voice:              "v2",
		ParameterOverrides: core.ParameterOverrides{Temperature: ptr(1.4)},
	})
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "v2", calls[0].VoiceID)
	assert.InDelta(t, 1.4, calls[0].Params.Temperature, 1e-9)
	assert.Equal(t, 5, calls[0].Params.Seed)
	assert.Equal(t, core.DefaultChunkLength, calls[0].Params.ChunkLength)
}

func TestEntity_NoVoiceSelected(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient()
	entity := newEntity(t, client, core.EntryOptions{})

	_, err := entity.GetAudio(context.Background(), "Hi", "en", speech.Options{})
	require.ErrorIs(t, err, speech.ErrNoVoiceSelected)
	assert.Empty(t, client.Calls(), "no synthesis call without a voice")
}

func TestEntity_SynthesisFailure(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice)
	entity := newEntity(t, client, core.EntryOptions{})
	client.SpeechErr = &tts.ServiceError{StatusCode: 500, Detail: "model crashed"}

	audio, err := entity.GetAudio(context.Background(), "Hi", "en", speech.Options{})
	require.Error(t, err)
	assert.Empty(t, audio.Data)

	var failed *speech.SynthesisFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, err.Error(), "TTS generation failed")
	assert.Contains(t, err.Error(), "model crashed")

	var svcErr *tts.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 500, svcErr.StatusCode)
}
