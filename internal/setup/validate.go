package setup

import (
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/voices"
)

// ValidateVoiceSettings range-checks the parameters submitted to the
// "voice_settings" step. The result maps field keys to messages and is empty
// when the input is acceptable.
func ValidateVoiceSettings(input core.ParameterOverrides) map[string]string {
	problems := input.Validate()
	if len(problems) == 0 {
		return nil
	}

	errs := make(map[string]string, len(problems))
	for field, err := range problems {
		errs[field] = err.Error()
	}

	return errs
}

func validateInit(input InitInput, catalog []core.Voice) map[string]string {
	switch {
	case input.Voice == "":
		return map[string]string{core.OptionVoice: ErrorRequired}
	case !voices.Contains(catalog, input.Voice):
		return map[string]string{core.OptionVoice: ErrorInvalidVoice}
	default:
		return nil
	}
}
