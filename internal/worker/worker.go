// Package worker serves PlomTTS speech requests and setup flows over NATS request/reply.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/metrics"
	"github.com/book-expert/plomtts-service/internal/speech"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	handleMessageTimeout = 60 * time.Second
	audioContentType     = "audio/mpeg"
)

var (
	// ErrEntryIDEmpty indicates a speech request without entry id.
	ErrEntryIDEmpty = errors.New("entry_id cannot be empty")
	// ErrMessageEmpty indicates a speech request without text.
	ErrMessageEmpty = errors.New("message cannot be empty")
)

// EntityProvider looks up the speech entity of a loaded entry.
type EntityProvider interface {
	Entity(entryID string) (*speech.Entity, error)
}

// NatsWorker answers speech requests on a NATS subject. Each reply names the
// object store key of the synthesized clip.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	entities       EntityProvider
	store          core.ObjectStore
	log            *logger.Logger
	metrics        *metrics.Metrics
}

// NewNatsWorker creates a speech worker. m may be nil.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	entities EntityProvider,
	store core.ObjectStore,
	log *logger.Logger,
	m *metrics.Metrics,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		entities:       entities,
		store:          store,
		log:            log,
		metrics:        m,
	}
}

// Run subscribes and serves until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	return serve(ctx, w.natsConnection, w.subject, w.handleMessage)
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var request SpeechRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal speech request: %v", err)
		w.metrics.ObserveSpeech(metrics.OutcomeBadRequest, 0, 0)
		respond(w.log, msg, SpeechReply{Error: fmt.Sprintf("invalid request: %v", err)})

		return
	}

	reply := SpeechReply{Header: request.Header}

	started := time.Now()

	audioKey, audio, outcome, err := w.processSpeech(ctx, request)
	w.metrics.ObserveSpeech(outcome, time.Since(started), len(audio.Data))

	if err != nil {
		w.log.Error("Speech request %s for entry %s failed: %v", request.Header.EventID, request.EntryID, err)
		reply.Error = err.Error()
	} else {
		reply.AudioKey = audioKey
		reply.Format = audio.Format
		reply.Size = len(audio.Data)
		w.log.Info("Speech request %s for entry %s stored %d bytes as %s",
			request.Header.EventID, request.EntryID, reply.Size, audioKey)
	}

	respond(w.log, msg, reply)
}

// processSpeech synthesizes the request and uploads the clip. The outcome is
// the metrics label for the result.
func (w *NatsWorker) processSpeech(ctx context.Context, request SpeechRequest) (string, speech.Audio, string, error) {
	if request.EntryID == "" {
		return "", speech.Audio{}, metrics.OutcomeBadRequest, ErrEntryIDEmpty
	}

	if strings.TrimSpace(request.Message) == "" {
		return "", speech.Audio{}, metrics.OutcomeBadRequest, ErrMessageEmpty
	}

	entity, err := w.entities.Entity(request.EntryID)
	if err != nil {
		return "", speech.Audio{}, metrics.OutcomeUnknownEntry, err
	}

	language := request.Language
	if language == "" {
		language = entity.DefaultLanguage()
	}

	audio, err := entity.GetAudio(ctx, request.Message, language, request.Options)
	if errors.Is(err, speech.ErrNoVoiceSelected) {
		return "", speech.Audio{}, metrics.OutcomeNoVoice, err
	}

	if err != nil {
		return "", speech.Audio{}, metrics.OutcomeFailed, err
	}

	audioKey := uuid.NewString() + "." + audio.Format

	err = w.store.Upload(ctx, audioKey, audioContentType, audio.Data)
	if err != nil {
		return "", speech.Audio{}, metrics.OutcomeStoreFailed,
			fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, audio, metrics.OutcomeSuccess, nil
}

// serve subscribes handler to subject and drains the subscription once ctx is done.
func serve(ctx context.Context, natsConnection *nats.Conn, subject string, handler nats.MsgHandler) error {
	sub, err := natsConnection.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

// respond marshals reply and answers msg. Failures are logged.
func respond(log *logger.Logger, msg *nats.Msg, reply any) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		log.Error("Failed to publish reply: %v", err)
	}
}
