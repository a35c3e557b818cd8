package core

import (
	"errors"
	"fmt"
)

// Default synthesis parameters used when neither the stored options nor the
// request supply a value.
const (
	DefaultMaxNewTokens      = 0
	DefaultChunkLength       = 200
	DefaultTopP              = 0.7
	DefaultRepetitionPenalty = 1.2
	DefaultTemperature       = 0.7
	DefaultSeed              = 0
)

// Accepted ranges for the synthesis parameters.
const (
	MinChunkLength       = 1
	MaxChunkLength       = 1000
	MinTopP              = 0.0
	MaxTopP              = 1.0
	MinRepetitionPenalty = 1.0
	MaxRepetitionPenalty = 2.0
	MinTemperature       = 0.1
	MaxTemperature       = 2.0
)

var (
	// ErrMaxNewTokensRange indicates that max_new_tokens is negative.
	ErrMaxNewTokensRange = errors.New("max_new_tokens must be >= 0")
	// ErrChunkLengthRange indicates that chunk_length is outside [1, 1000].
	ErrChunkLengthRange = errors.New("chunk_length must be between 1 and 1000")
	// ErrTopPRange indicates that top_p is outside [0.0, 1.0].
	ErrTopPRange = errors.New("top_p must be between 0.0 and 1.0")
	// ErrRepetitionPenaltyRange indicates that repetition_penalty is outside [1.0, 2.0].
	ErrRepetitionPenaltyRange = errors.New("repetition_penalty must be between 1.0 and 2.0")
	// ErrTemperatureRange indicates that temperature is outside [0.1, 2.0].
	ErrTemperatureRange = errors.New("temperature must be between 0.1 and 2.0")
	// ErrSeedRange indicates that seed is negative.
	ErrSeedRange = errors.New("seed must be >= 0")
)

// SynthesisParameters is the concrete parameter set sent with one synthesis call.
type SynthesisParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	ChunkLength       int     `json:"chunk_length"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	Temperature       float64 `json:"temperature"`
	Seed              int     `json:"seed"`
}

// DefaultParameters returns the hardcoded defaults.
func DefaultParameters() SynthesisParameters {
	return SynthesisParameters{
		MaxNewTokens:      DefaultMaxNewTokens,
		ChunkLength:       DefaultChunkLength,
		TopP:              DefaultTopP,
		RepetitionPenalty: DefaultRepetitionPenalty,
		Temperature:       DefaultTemperature,
		Seed:              DefaultSeed,
	}
}

// ParameterOverrides is a partial SynthesisParameters. A nil field means
// "not set at this layer".
type ParameterOverrides struct {
	MaxNewTokens      *int     `json:"max_new_tokens,omitempty"`
	ChunkLength       *int     `json:"chunk_length,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Seed              *int     `json:"seed,omitempty"`
}

// IsEmpty reports whether no field is set.
func (o ParameterOverrides) IsEmpty() bool {
	return o == ParameterOverrides{}
}

// Apply returns base with every set field of o written over it.
func (o ParameterOverrides) Apply(base SynthesisParameters) SynthesisParameters {
	if o.MaxNewTokens != nil {
		base.MaxNewTokens = *o.MaxNewTokens
	}

	if o.ChunkLength != nil {
		base.ChunkLength = *o.ChunkLength
	}

	if o.TopP != nil {
		base.TopP = *o.TopP
	}

	if o.RepetitionPenalty != nil {
		base.RepetitionPenalty = *o.RepetitionPenalty
	}

	if o.Temperature != nil {
		base.Temperature = *o.Temperature
	}

	if o.Seed != nil {
		base.Seed = *o.Seed
	}

	return base
}

// Resolve picks each field from call, then persisted, then defaults.
// Values are not validated here.
func Resolve(defaults SynthesisParameters, persisted, call ParameterOverrides) SynthesisParameters {
	return call.Apply(persisted.Apply(defaults))
}

// Overrides returns p as a fully populated ParameterOverrides.
func (p SynthesisParameters) Overrides() ParameterOverrides {
	return ParameterOverrides{
		MaxNewTokens:      &p.MaxNewTokens,
		ChunkLength:       &p.ChunkLength,
		TopP:              &p.TopP,
		RepetitionPenalty: &p.RepetitionPenalty,
		Temperature:       &p.Temperature,
		Seed:              &p.Seed,
	}
}

// Validate checks every set field against its accepted range. The returned map is
// keyed by the option name and is empty when all fields are acceptable.
func (o ParameterOverrides) Validate() map[string]error {
	problems := make(map[string]error)

	if o.MaxNewTokens != nil && *o.MaxNewTokens < 0 {
		problems[OptionMaxNewTokens] = fmt.Errorf("%w: got %d", ErrMaxNewTokensRange, *o.MaxNewTokens)
	}

	if o.ChunkLength != nil && (*o.ChunkLength < MinChunkLength || *o.ChunkLength > MaxChunkLength) {
		problems[OptionChunkLength] = fmt.Errorf("%w: got %d", ErrChunkLengthRange, *o.ChunkLength)
	}

	if o.TopP != nil && (*o.TopP < MinTopP || *o.TopP > MaxTopP) {
		problems[OptionTopP] = fmt.Errorf("%w: got %f", ErrTopPRange, *o.TopP)
	}

	if o.RepetitionPenalty != nil &&
		(*o.RepetitionPenalty < MinRepetitionPenalty || *o.RepetitionPenalty > MaxRepetitionPenalty) {
		problems[OptionRepetitionPenalty] = fmt.Errorf("%w: got %f", ErrRepetitionPenaltyRange, *o.RepetitionPenalty)
	}

	if o.Temperature != nil && (*o.Temperature < MinTemperature || *o.Temperature > MaxTemperature) {
		problems[OptionTemperature] = fmt.Errorf("%w: got %f", ErrTemperatureRange, *o.Temperature)
	}

	if o.Seed != nil && *o.Seed < 0 {
		problems[OptionSeed] = fmt.Errorf("%w: got %d", ErrSeedRange, *o.Seed)
	}

	return problems
}
