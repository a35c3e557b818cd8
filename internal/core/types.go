package core

// Domain is the integration identifier used in device identifiers and flow titles.
const Domain = "plomtts"

// DefaultServerURL is suggested when a new entry is configured.
const DefaultServerURL = "http://localhost:8420"

// DefaultTitle is the title given to every configuration record.
const DefaultTitle = "PlomTTS"

// Option keys shared by forms, stored options and per-request options.
const (
	OptionServerURL         = "server_url"
	OptionVoice             = "voice"
	OptionConfigureVoice    = "configure_voice"
	OptionMaxNewTokens      = "max_new_tokens"
	OptionChunkLength       = "chunk_length"
	OptionTopP              = "top_p"
	OptionRepetitionPenalty = "repetition_penalty"
	OptionTemperature       = "temperature"
	OptionSeed              = "seed"
)

// Voice is a server-assigned synthesis persona.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EntryData is the part of a configuration record fixed at creation time.
type EntryData struct {
	ServerURL string `json:"server_url"`
}

// EntryOptions is the part of a configuration record edited by the options flow.
type EntryOptions struct {
	Voice string `json:"voice,omitempty"`
	ParameterOverrides
}

// Entry is one persisted integration instance.
type Entry struct {
	ID      string       `json:"entry_id"`
	Title   string       `json:"title"`
	Data    EntryData    `json:"data"`
	Options EntryOptions `json:"options"`
}
