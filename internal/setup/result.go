// Package setup drives the multi-step wizard that produces and edits PlomTTS
// configuration records.
//
// A ConfigFlow starts at the "user" step (server address), then shares the
// "init" (voice) and "voice_settings" (synthesis parameters) steps with the
// OptionsFlow used to edit an existing record. Every step returns a Result that
// either asks for another form, creates an entry, or aborts.
package setup

import "github.com/book-expert/plomtts-service/internal/core"

// ResultType tells the caller what to do with a Result.
type ResultType string

// Result types.
const (
	ResultTypeForm        ResultType = "form"
	ResultTypeCreateEntry ResultType = "create_entry"
	ResultTypeAbort       ResultType = "abort"
)

// Step identifiers.
const (
	StepUser          = "user"
	StepInit          = "init"
	StepVoiceSettings = "voice_settings"
)

// Error codes shown on forms and abort reasons.
const (
	ErrorBase               = "base"
	ErrorCannotConnect      = "cannot_connect"
	ErrorUnknown            = "unknown"
	ErrorNoVoices           = "no_voices"
	ErrorInvalidVoice       = "invalid_voice"
	ErrorRequired           = "required"
	ReasonAlreadyConfigured = "already_configured"
)

// FieldType is the input kind of a form field.
type FieldType string

// Field types.
const (
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldInteger FieldType = "integer"
	FieldFloat   FieldType = "float"
	FieldSelect  FieldType = "select"
)

// SelectOption is one choice of a select field.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one form input so a front end can render and pre-check it.
type Field struct {
	Key       string         `json:"key"`
	Type      FieldType      `json:"type"`
	Required  bool           `json:"required"`
	Default   any            `json:"default,omitempty"`
	Suggested any            `json:"suggested_value,omitempty"`
	Min       *float64       `json:"min,omitempty"`
	Max       *float64       `json:"max,omitempty"`
	Options   []SelectOption `json:"options,omitempty"`
}

// Result is the outcome of one flow step.
type Result struct {
	Type    ResultType         `json:"type"`
	FlowID  string             `json:"flow_id,omitempty"`
	StepID  string             `json:"step_id,omitempty"`
	Schema  []Field            `json:"data_schema,omitempty"`
	Errors  map[string]string  `json:"errors,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Title   string             `json:"title,omitempty"`
	EntryID string             `json:"entry_id,omitempty"`
	Data    *core.EntryData    `json:"data,omitempty"`
	Options *core.EntryOptions `json:"options,omitempty"`
}

func showForm(stepID string, schema []Field, errors map[string]string) Result {
	return Result{Type: ResultTypeForm, StepID: stepID, Schema: schema, Errors: errors}
}

func abort(reason string) Result {
	return Result{Type: ResultTypeAbort, Reason: reason}
}

func createEntry(data *core.EntryData, options core.EntryOptions) Result {
	return Result{Type: ResultTypeCreateEntry, Title: core.DefaultTitle, Data: data, Options: &options}
}

func bound(v float64) *float64 { return &v }

func userSchema(defaultURL string) []Field {
	if defaultURL == "" {
		defaultURL = core.DefaultServerURL
	}

	return []Field{{
		Key:      core.OptionServerURL,
		Type:     FieldString,
		Required: true,
		Default:  defaultURL,
	}}
}

func initSchema(catalog []core.Voice, suggestedVoice string) []Field {
	choices := make([]SelectOption, 0, len(catalog))
	for _, voice := range catalog {
		choices = append(choices, SelectOption{Value: voice.ID, Label: voice.Name})
	}

	voiceField := Field{Key: core.OptionVoice, Type: FieldSelect, Required: true, Options: choices}
	if suggestedVoice != "" {
		voiceField.Suggested = suggestedVoice
	}

	return []Field{
		voiceField,
		{Key: core.OptionConfigureVoice, Type: FieldBoolean, Required: true, Default: false},
	}
}

// voiceSettingsSchema shows the stored value of each parameter, or its default.
func voiceSettingsSchema(stored core.ParameterOverrides) []Field {
	current := stored.Apply(core.DefaultParameters())

	return []Field{
		{Key: core.OptionMaxNewTokens, Type: FieldInteger, Default: current.MaxNewTokens, Min: bound(0)},
		{
			Key: core.OptionChunkLength, Type: FieldInteger, Default: current.ChunkLength,
			Min: bound(core.MinChunkLength), Max: bound(core.MaxChunkLength),
		},
		{
			Key: core.OptionTopP, Type: FieldFloat, Default: current.TopP,
			Min: bound(core.MinTopP), Max: bound(core.MaxTopP),
		},
		{
			Key: core.OptionRepetitionPenalty, Type: FieldFloat, Default: current.RepetitionPenalty,
			Min: bound(core.MinRepetitionPenalty), Max: bound(core.MaxRepetitionPenalty),
		},
		{
			Key: core.OptionTemperature, Type: FieldFloat, Default: current.Temperature,
			Min: bound(core.MinTemperature), Max: bound(core.MaxTemperature),
		},
		{Key: core.OptionSeed, Type: FieldInteger, Default: current.Seed, Min: bound(0)},
	}
}
