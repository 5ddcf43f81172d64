package domain

import (
	"strconv"
	"strings"
)

// GroupKey identifies one repeated CCP management question group. Keys are
// derived deterministically from the step name and hazard label so a re-run
// of the fan-out yields the same keys.
type GroupKey string

// NewGroupKey derives the key for a (step, hazard) pair. Both parts are
// sanitized to identifier form and joined with an underscore. Sanitization:
// lowercase, runs of non-alphanumeric characters collapse to a single
// underscore, leading and trailing underscores are trimmed. Collisions after
// sanitization are resolved by the caller via WithOrdinal.
func NewGroupKey(stepName, hazard string) GroupKey {
	return GroupKey(sanitizeIdentifier(stepName) + "_" + sanitizeIdentifier(hazard))
}

// WithOrdinal returns a collision-suffixed variant of the key. Ordinal 0
// returns the key unchanged; ordinal n>0 appends "_n+1" so the second
// occurrence of "cooking_biological" becomes "cooking_biological_2".
func (k GroupKey) WithOrdinal(ordinal int) GroupKey {
	if ordinal <= 0 {
		return k
	}
	return k + GroupKey("_"+strconv.Itoa(ordinal+1))
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
