package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/tts"
	"github.com/book-expert/plomtts-service/internal/voices"
)

var (
	// ErrUnknownStep is returned when input arrives for a step the flow does not have.
	ErrUnknownStep = errors.New("unknown flow step")
	// ErrInvalidInput is returned when step input cannot be decoded.
	ErrInvalidInput = errors.New("invalid step input")
)

// UserInput is the input of the "user" step.
type UserInput struct {
	ServerURL string `json:"server_url"`
}

// InitInput is the input of the "init" step.
type InitInput struct {
	Voice          string `json:"voice"`
	ConfigureVoice bool   `json:"configure_voice"`
}

// Flow is a wizard the Manager can drive step by step.
type Flow interface {
	// Start returns the first form of the flow.
	Start(ctx context.Context) Result
	// Handle submits raw JSON input for stepID. Input is checked against the
	// step's schema before the step logic runs.
	Handle(ctx context.Context, stepID string, input json.RawMessage) (Result, error)
}

// optionSteps holds the "init" and "voice_settings" logic shared by both flows.
// The voice catalogue is fetched at most once per flow instance.
type optionSteps struct {
	newClient core.ClientFactory
	log       *logger.Logger
	serverURL string
	stored    core.EntryOptions
	suggested string

	catalog []core.Voice
	fetched bool
	voice   string
}

func (s *optionSteps) stepInit(ctx context.Context, input *InitInput) Result {
	if !s.fetched {
		catalog, err := voices.Fetch(ctx, s.newClient(s.serverURL))
		if err != nil {
			s.log.Error("Failed to fetch voices from %s: %v", s.serverURL, err)

			return abort(ErrorCannotConnect)
		}

		s.catalog = catalog
		s.fetched = true
	}

	if len(s.catalog) == 0 {
		return abort(ErrorNoVoices)
	}

	if input == nil {
		return showForm(StepInit, initSchema(s.catalog, s.suggested), nil)
	}

	s.voice = input.Voice
	if input.ConfigureVoice {
		return s.stepVoiceSettings(nil)
	}

	return createEntry(nil, core.EntryOptions{Voice: s.voice})
}

func (s *optionSteps) stepVoiceSettings(input *core.ParameterOverrides) Result {
	if input == nil {
		return showForm(StepVoiceSettings, voiceSettingsSchema(s.stored.ParameterOverrides), nil)
	}

	params := core.Resolve(core.DefaultParameters(), s.stored.ParameterOverrides, *input)

	return createEntry(nil, core.EntryOptions{Voice: s.voice, ParameterOverrides: params.Overrides()})
}

// handleShared decodes and checks input for the shared steps.
func (s *optionSteps) handleShared(ctx context.Context, stepID string, raw json.RawMessage) (Result, error) {
	switch stepID {
	case StepInit:
		var input InitInput

		err := decodeInput(raw, &input)
		if err != nil {
			return Result{}, err
		}

		if s.fetched {
			problems := validateInit(input, s.catalog)
			if len(problems) > 0 {
				return showForm(StepInit, initSchema(s.catalog, s.suggested), problems), nil
			}
		}

		return s.stepInit(ctx, &input), nil
	case StepVoiceSettings:
		var input core.ParameterOverrides

		err := decodeInput(raw, &input)
		if err != nil {
			return Result{}, err
		}

		problems := ValidateVoiceSettings(input)
		if len(problems) > 0 {
			return showForm(StepVoiceSettings, voiceSettingsSchema(s.stored.ParameterOverrides), problems), nil
		}

		return s.stepVoiceSettings(&input), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStep, stepID)
	}
}

// ConfigFlow creates a new configuration record.
type ConfigFlow struct {
	optionSteps

	configured map[string]struct{}
	defaultURL string
}

// NewConfigFlow returns a flow for a new entry. Server addresses listed in
// configured are refused with "already_configured".
func NewConfigFlow(newClient core.ClientFactory, log *logger.Logger, configured ...string) *ConfigFlow {
	known := make(map[string]struct{}, len(configured))
	for _, url := range configured {
		known[normalizeURL(url)] = struct{}{}
	}

	return &ConfigFlow{
		optionSteps: optionSteps{newClient: newClient, log: log},
		configured:  known,
	}
}

// WithDefaultServerURL replaces the server address offered on the first form.
func (f *ConfigFlow) WithDefaultServerURL(url string) *ConfigFlow {
	f.defaultURL = url

	return f
}

// Start implements Flow.
func (f *ConfigFlow) Start(ctx context.Context) Result {
	return f.StepUser(ctx, nil)
}

// StepUser collects the server address. Failures redisplay the form with an error
// code; success moves to the voice step with the first voice preselected.
func (f *ConfigFlow) StepUser(ctx context.Context, input *UserInput) Result {
	if input == nil {
		return showForm(StepUser, userSchema(f.defaultURL), nil)
	}

	if _, dup := f.configured[normalizeURL(input.ServerURL)]; dup {
		return abort(ReasonAlreadyConfigured)
	}

	catalog, err := voices.Fetch(ctx, f.newClient(input.ServerURL))

	code := ""

	switch {
	case err != nil && tts.IsConnectionError(err):
		code = ErrorCannotConnect
	case err != nil:
		var svcErr *tts.ServiceError
		if !errors.As(err, &svcErr) {
			f.log.Error("Unexpected error during setup: %v", err)
		}

		code = ErrorUnknown
	case len(catalog) == 0:
		code = ErrorNoVoices
	}

	if code != "" {
		f.log.Warn("Setup of %s failed: %s", input.ServerURL, code)

		return showForm(StepUser, userSchema(f.defaultURL), map[string]string{ErrorBase: code})
	}

	f.serverURL = input.ServerURL
	f.suggested = catalog[0].ID

	return f.StepInit(ctx, nil)
}

// StepInit collects the default voice and whether to tune parameters.
func (f *ConfigFlow) StepInit(ctx context.Context, input *InitInput) Result {
	return f.withData(f.stepInit(ctx, input))
}

// StepVoiceSettings collects the six synthesis parameters.
func (f *ConfigFlow) StepVoiceSettings(input *core.ParameterOverrides) Result {
	return f.withData(f.stepVoiceSettings(input))
}

// Handle implements Flow.
func (f *ConfigFlow) Handle(ctx context.Context, stepID string, raw json.RawMessage) (Result, error) {
	if stepID != StepUser {
		result, err := f.handleShared(ctx, stepID, raw)

		return f.withData(result), err
	}

	var input UserInput

	err := decodeInput(raw, &input)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(input.ServerURL) == "" {
		return showForm(StepUser, userSchema(f.defaultURL), map[string]string{core.OptionServerURL: ErrorRequired}), nil
	}

	return f.StepUser(ctx, &input), nil
}

func (f *ConfigFlow) withData(result Result) Result {
	if result.Type == ResultTypeCreateEntry {
		result.Data = &core.EntryData{ServerURL: f.serverURL}
	}

	return result
}

// OptionsFlow edits the options of an existing record. It starts at the voice
// step and aborts, rather than redisplaying, when the server cannot be used.
type OptionsFlow struct {
	optionSteps
}

// NewOptionsFlow returns a flow editing entry.
func NewOptionsFlow(newClient core.ClientFactory, log *logger.Logger, entry core.Entry) *OptionsFlow {
	return &OptionsFlow{optionSteps: optionSteps{
		newClient: newClient,
		log:       log,
		serverURL: entry.Data.ServerURL,
		stored:    entry.Options,
		suggested: entry.Options.Voice,
	}}
}

// Start implements Flow.
func (f *OptionsFlow) Start(ctx context.Context) Result {
	return f.StepInit(ctx, nil)
}

// StepInit collects the default voice and whether to tune parameters.
func (f *OptionsFlow) StepInit(ctx context.Context, input *InitInput) Result {
	return f.stepInit(ctx, input)
}

// StepVoiceSettings collects the six synthesis parameters.
func (f *OptionsFlow) StepVoiceSettings(input *core.ParameterOverrides) Result {
	return f.stepVoiceSettings(input)
}

// Handle implements Flow.
func (f *OptionsFlow) Handle(ctx context.Context, stepID string, raw json.RawMessage) (Result, error) {
	return f.handleShared(ctx, stepID, raw)
}

func decodeInput(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	err := json.Unmarshal(raw, target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return nil
}

func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}
