// Package voices builds the voice catalogue presented to users from the remote listing.
package voices

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/book-expert/plomtts-service/internal/core"
)

// Fetch health-checks the server, lists its voices and returns them sorted by
// display name. Errors from the client are returned wrapped but unchanged in
// kind, so callers can still tell connection failures from service failures.
func Fetch(ctx context.Context, client core.SpeechClient) ([]core.Voice, error) {
	err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	listed, err := client.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	return Sort(listed), nil
}

// Sort returns a copy of voices without duplicate ids (the first occurrence is
// kept), ordered by display name in byte order. Equal names keep their listed order.
func Sort(voices []core.Voice) []core.Voice {
	seen := make(map[string]struct{}, len(voices))
	sorted := make([]core.Voice, 0, len(voices))

	for _, voice := range voices {
		if _, dup := seen[voice.ID]; dup {
			continue
		}

		seen[voice.ID] = struct{}{}
		sorted = append(sorted, voice)
	}

	slices.SortStableFunc(sorted, func(a, b core.Voice) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return sorted
}

// PromoteDefault returns a copy of voices with the entry whose id is defaultID
// moved to the front. The rest keep their relative order. When nothing matches
// the copy is in the original order.
func PromoteDefault(voices []core.Voice, defaultID string) []core.Voice {
	promoted := slices.Clone(voices)
	if defaultID == "" {
		return promoted
	}

	idx := slices.IndexFunc(promoted, func(v core.Voice) bool { return v.ID == defaultID })
	if idx <= 0 {
		return promoted
	}

	chosen := promoted[idx]
	copy(promoted[1:idx+1], promoted[:idx])
	promoted[0] = chosen

	return promoted
}

// DefaultVoiceID returns configured when set, otherwise the id of the first voice.
// It returns "" when there is neither.
func DefaultVoiceID(voices []core.Voice, configured string) string {
	if configured != "" {
		return configured
	}

	if len(voices) == 0 {
		return ""
	}

	return voices[0].ID
}

// Contains reports whether a voice with the given id is in the catalogue.
func Contains(voices []core.Voice, id string) bool {
	return slices.ContainsFunc(voices, func(v core.Voice) bool { return v.ID == id })
}
