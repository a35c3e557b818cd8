package worker

import (
	"encoding/json"

	"github.com/book-expert/events"
	"github.com/book-expert/plomtts-service/internal/setup"
	"github.com/book-expert/plomtts-service/internal/speech"
)

// SpeechRequest asks the entity of EntryID to speak Message.
type SpeechRequest struct {
	Header   events.EventHeader `json:"header"`
	EntryID  string             `json:"entry_id"`
	Message  string             `json:"message"`
	Language string             `json:"language,omitempty"`
	Options  speech.Options     `json:"options"`
}

// SpeechReply points at the stored clip, or carries the failure.
type SpeechReply struct {
	Header   events.EventHeader `json:"header"`
	AudioKey string             `json:"audio_key,omitempty"`
	Format   string             `json:"format,omitempty"`
	Size     int                `json:"size,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// FlowStartRequest begins a setup or options flow.
type FlowStartRequest struct {
	Kind    setup.FlowKind `json:"kind"`
	EntryID string         `json:"entry_id,omitempty"`
}

// FlowStepRequest submits the input of the current step of a flow.
type FlowStepRequest struct {
	FlowID string          `json:"flow_id"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// FlowErrorReply is sent instead of a setup.Result when a flow request fails.
type FlowErrorReply struct {
	Error string `json:"error"`
}
