package projection

import (
	"strings"

	"github.com/jwalitptl/phi-api/internal/model"
)

const redacted = "***"

// maskValue redacts a value by attribute-specific convention. The mask is
// never derivable back to the plaintext; only coarse tails survive where a
// human needs a confirmation hint (last four of an identifier).
func maskValue(field string, value any) any {
	s, ok := value.(string)
	if !ok {
		if list, ok := value.([]string); ok {
			masked := make([]string, len(list))
			for i := range masked {
				masked[i] = redacted
			}
			return masked
		}
		return redacted
	}

	switch field {
	case model.FieldNationalID:
		return maskTail(s, 4, "***-**-")
	case model.FieldEmail:
		return maskEmail(s)
	case model.FieldPhone:
		return maskTail(s, 2, redacted)
	default:
		return redacted
	}
}

func maskTail(s string, keep int, prefix string) string {
	if len(s) <= keep {
		return redacted
	}
	return prefix + s[len(s)-keep:]
}

func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return redacted
	}
	return s[:1] + redacted + s[at:]
}
