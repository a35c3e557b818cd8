package core_test

import (
	"testing"

	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func fullOverrides(maxTokens, chunk int, topP, penalty, temp float64, seed int) core.ParameterOverrides {
	return core.ParameterOverrides{
		MaxNewTokens:      intPtr(maxTokens),
		ChunkLength:       intPtr(chunk),
		TopP:              floatPtr(topP),
		RepetitionPenalty: floatPtr(penalty),
		Temperature:       floatPtr(temp),
		Seed:              intPtr(seed),
	}
}

func TestResolve_CallOverrideWins(t *testing.T) {
	t.Parallel()

	persisted := fullOverrides(10, 300, 0.5, 1.5, 0.9, 7)
	call := fullOverrides(20, 400, 0.3, 1.8, 1.1, 42)

	got := core.Resolve(core.DefaultParameters(), persisted, call)

	assert.Equal(t, core.SynthesisParameters{
		MaxNewTokens:      20,
		ChunkLength:       400,
		TopP:              0.3,
		RepetitionPenalty: 1.8,
		Temperature:       1.1,
		Seed:              42,
	}, got)
}

func TestResolve_PersistedUsedWithoutCallOverride(t *testing.T) {
	t.Parallel()

	persisted := fullOverrides(10, 300, 0.5, 1.5, 0.9, 7)

	got := core.Resolve(core.DefaultParameters(), persisted, core.ParameterOverrides{})

	assert.Equal(t, core.SynthesisParameters{
		MaxNewTokens:      10,
		ChunkLength:       300,
		TopP:              0.5,
		RepetitionPenalty: 1.5,
		Temperature:       0.9,
		Seed:              7,
	}, got)
}

func TestResolve_DefaultsWithoutOverrides(t *testing.T) {
	t.Parallel()

	got := core.Resolve(core.DefaultParameters(), core.ParameterOverrides{}, core.ParameterOverrides{})

	assert.Equal(t, core.SynthesisParameters{
		MaxNewTokens:      0,
		ChunkLength:       200,
		TopP:              0.7,
		RepetitionPenalty: 1.2,
		Temperature:       0.7,
		Seed:              0,
	}, got)
}

func TestResolve_FieldsAreIndependent(t *testing.T) {
	t.Parallel()

	persisted := core.ParameterOverrides{Temperature: floatPtr(0.9), Seed: intPtr(3)}
	call := core.ParameterOverrides{Seed: intPtr(99), ChunkLength: intPtr(50)}

	got := core.Resolve(core.DefaultParameters(), persisted, call)

	assert.InEpsilon(t, 0.9, got.Temperature, 0.0001)
	assert.Equal(t, 99, got.Seed)
	assert.Equal(t, 50, got.ChunkLength)
	assert.InEpsilon(t, core.DefaultTopP, got.TopP, 0.0001)
	assert.Equal(t, core.DefaultMaxNewTokens, got.MaxNewTokens)
}

func TestResolve_ZeroOverrideIsStillAnOverride(t *testing.T) {
	t.Parallel()

	got := core.Resolve(core.DefaultParameters(), core.ParameterOverrides{}, core.ParameterOverrides{
		TopP: floatPtr(0),
	})

	assert.Zero(t, got.TopP)
}

func TestParameterOverrides_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, core.ParameterOverrides{}.IsEmpty())
	assert.False(t, core.ParameterOverrides{Seed: intPtr(0)}.IsEmpty())
}

func TestSynthesisParameters_OverridesRoundTrip(t *testing.T) {
	t.Parallel()

	params := core.SynthesisParameters{
		MaxNewTokens: 5, ChunkLength: 10, TopP: 0.1, RepetitionPenalty: 1.1, Temperature: 0.2, Seed: 3,
	}

	assert.Equal(t, params, params.Overrides().Apply(core.DefaultParameters()))
}

func TestParameterOverrides_Validate(t *testing.T) {
	t.Parallel()

	valid := fullOverrides(0, 1, 0, 1.0, 0.1, 0)
	assert.Empty(t, valid.Validate())

	upper := fullOverrides(100, 1000, 1.0, 2.0, 2.0, 123)
	assert.Empty(t, upper.Validate())

	invalid := fullOverrides(-1, 1001, 1.5, 0.5, 0.05, -3)
	problems := invalid.Validate()

	require.Len(t, problems, 6)
	assert.ErrorIs(t, problems[core.OptionMaxNewTokens], core.ErrMaxNewTokensRange)
	assert.ErrorIs(t, problems[core.OptionChunkLength], core.ErrChunkLengthRange)
	assert.ErrorIs(t, problems[core.OptionTopP], core.ErrTopPRange)
	assert.ErrorIs(t, problems[core.OptionRepetitionPenalty], core.ErrRepetitionPenaltyRange)
	assert.ErrorIs(t, problems[core.OptionTemperature], core.ErrTemperatureRange)
	assert.ErrorIs(t, problems[core.OptionSeed], core.ErrSeedRange)
}
