// Package ttstest provides an in-memory core.SpeechClient for tests.
package ttstest

import (
	"context"
	"errors"
	"sync"

	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/tts"
)

// ErrRefused is the cause carried by the connection errors of an unreachable FakeClient.
var ErrRefused = errors.New("connection refused")

// SpeechCall records one GenerateSpeech invocation.
type SpeechCall struct {
	Text    string
	VoiceID string
	Params  core.SynthesisParameters
}

// FakeClient is a scriptable core.SpeechClient. The zero value is a healthy
// server with no voices that answers synthesis with Audio.
type FakeClient struct {
	mu sync.Mutex

	Voices      []core.Voice
	Audio       []byte
	Unreachable bool
	HealthErr   error
	ListErr     error
	SpeechErr   error

	HealthCalls int
	ListCalls   int
	SpeechCalls []SpeechCall
}

// NewFakeClient returns a healthy fake listing voices.
func NewFakeClient(voices ...core.Voice) *FakeClient {
	return &FakeClient{Voices: voices, Audio: []byte("ID3fake")}
}

func (f *FakeClient) connErr() error {
	return &tts.ConnectionError{URL: "fake://plomtts", Err: ErrRefused}
}

// Health implements core.SpeechClient.
func (f *FakeClient) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.HealthCalls++

	if f.Unreachable {
		return f.connErr()
	}

	return f.HealthErr
}

// ListVoices implements core.SpeechClient.
func (f *FakeClient) ListVoices(context.Context) ([]core.Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++

	if f.Unreachable {
		return nil, f.connErr()
	}

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	return append([]core.Voice(nil), f.Voices...), nil
}

// GenerateSpeech implements core.SpeechClient.
func (f *FakeClient) GenerateSpeech(
	_ context.Context,
	text, voiceID string,
	params core.SynthesisParameters,
) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SpeechCalls = append(f.SpeechCalls, SpeechCall{Text: text, VoiceID: voiceID, Params: params})

	if f.Unreachable {
		return nil, f.connErr()
	}

	if f.SpeechErr != nil {
		return nil, f.SpeechErr
	}

	return f.Audio, nil
}

// SetUnreachable toggles the connection failure mode.
func (f *FakeClient) SetUnreachable(unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Unreachable = unreachable
}

// SetHealthErr makes subsequent health checks fail with err; nil heals the server.
func (f *FakeClient) SetHealthErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.HealthErr = err
}

// SetSpeechErr makes subsequent synthesis calls fail with err.
func (f *FakeClient) SetSpeechErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SpeechErr = err
}

// SetVoices replaces the voice listing.
func (f *FakeClient) SetVoices(voices ...core.Voice) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Voices = voices
}

// Calls returns a copy of the recorded synthesis calls.
func (f *FakeClient) Calls() []SpeechCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]SpeechCall(nil), f.SpeechCalls...)
}

// Factory returns a core.ClientFactory that always hands out f and records the
// requested addresses in urls when it is non-nil.
func (f *FakeClient) Factory(urls *[]string) core.ClientFactory {
	var mu sync.Mutex

	return func(serverURL string) core.SpeechClient {
		if urls != nil {
			mu.Lock()
			*urls = append(*urls, serverURL)
			mu.Unlock()
		}

		return f
	}
}
