package normalize

import (
	"time"

	"github.com/araddon/dateparse"
)

// ParseEventTime parses a provider-supplied date string in whatever format
// it arrives in. The second return value reports which branch was taken:
// true for a parsed timestamp, false for the ingestion-time fallback.
func ParseEventTime(raw string, fallback time.Time) (time.Time, bool) {
	if raw == "" {
		return fallback, false
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return fallback, false
	}
	return parsed, true
}
