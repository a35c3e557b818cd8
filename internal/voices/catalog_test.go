package voices_test

import (
	"context"
	"testing"

	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/tts"
	"github.com/book-expert/plomtts-service/internal/tts/ttstest"
	"github.com/book-expert/plomtts-service/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = core.Voice{ID: "v1", Name: "Alice"}
	bob   = core.Voice{ID: "v2", Name: "Bob"}
	carol = core.Voice{ID: "v3", Name: "Carol"}
)

func TestFetch_SortsByName(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(bob, alice)

	got, err := voices.Fetch(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, []core.Voice{alice, bob}, got)
	assert.Equal(t, 1, client.HealthCalls)
	assert.Equal(t, 1, client.ListCalls)
}

func TestFetch_ConnectionError(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice)
	client.Unreachable = true

	_, err := voices.Fetch(context.Background(), client)
	require.Error(t, err)
	assert.True(t, tts.IsConnectionError(err))
	assert.Zero(t, client.ListCalls)
}

func TestFetch_ServiceError(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(alice)
	client.ListErr = &tts.ServiceError{StatusCode: 500, Detail: "boom"}

	_, err := voices.Fetch(context.Background(), client)

	var svcErr *tts.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.False(t, tts.IsConnectionError(err))
}

func TestSort_ByteOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	lower := core.Voice{ID: "v4", Name: "alice"}
	dup := core.Voice{ID: "v1", Name: "Zed"}

	got := voices.Sort([]core.Voice{lower, bob, alice, dup})

	assert.Equal(t, []core.Voice{alice, bob, lower}, got)
}

func TestSort_StableForEqualNames(t *testing.T) {
	t.Parallel()

	first := core.Voice{ID: "a", Name: "Same"}
	second := core.Voice{ID: "b", Name: "Same"}

	assert.Equal(t, []core.Voice{first, second}, voices.Sort([]core.Voice{first, second}))
}

func TestPromoteDefault(t *testing.T) {
	t.Parallel()

	catalog := []core.Voice{alice, bob, carol}

	assert.Equal(t, []core.Voice{carol, alice, bob}, voices.PromoteDefault(catalog, "v3"))
	assert.Equal(t, []core.Voice{bob, alice, carol}, voices.PromoteDefault(catalog, "v2"))
	assert.Equal(t, catalog, voices.PromoteDefault(catalog, "v1"))
	assert.Equal(t, catalog, voices.PromoteDefault(catalog, "missing"))
	assert.Equal(t, catalog, voices.PromoteDefault(catalog, ""))

	// The input is never modified.
	assert.Equal(t, []core.Voice{alice, bob, carol}, catalog)
}

func TestPromoteDefault_KeepsRelativeOrder(t *testing.T) {
	t.Parallel()

	catalog := []core.Voice{
		{ID: "1", Name: "A"}, {ID: "2", Name: "B"}, {ID: "3", Name: "C"},
		{ID: "4", Name: "D"}, {ID: "5", Name: "E"},
	}

	for _, chosen := range catalog {
		got := voices.PromoteDefault(catalog, chosen.ID)
		require.Equal(t, chosen, got[0])

		var rest []core.Voice

		for _, v := range catalog {
			if v.ID != chosen.ID {
				rest = append(rest, v)
			}
		}

		assert.Equal(t, rest, got[1:])
	}
}

func TestEndToEndCatalog(t *testing.T) {
	t.Parallel()

	client := ttstest.NewFakeClient(core.Voice{ID: "v2", Name: "Bob"}, core.Voice{ID: "v1", Name: "Alice"})

	catalog, err := voices.Fetch(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, []core.Voice{alice, bob}, catalog)

	assert.Equal(t, []core.Voice{bob, alice}, voices.PromoteDefault(catalog, "v2"))
}

func TestDefaultVoiceID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "explicit", voices.DefaultVoiceID([]core.Voice{alice}, "explicit"))
	assert.Equal(t, "v1", voices.DefaultVoiceID([]core.Voice{alice, bob}, ""))
	assert.Empty(t, voices.DefaultVoiceID(nil, ""))
}

func TestContains(t *testing.T) {
	t.Parallel()

	assert.True(t, voices.Contains([]core.Voice{alice, bob}, "v2"))
	assert.False(t, voices.Contains([]core.Voice{alice, bob}, "v9"))
}
