package models

import (
	"time"
)

// Incident is the canonical event shape every source is normalized into.
// It is immutable after construction: built once by a normalizer, then
// passed through the pipeline and either emitted or dropped, never stored.
type Incident struct {
	// ID is the stable identity used as the dedup key. Provider-supplied
	// for push events, id/guid or a content hash for polled entries.
	// Never empty: push normalization fails instead of producing an
	// Incident without an identity.
	ID          string    `json:"id"`
	SourceName  string    `json:"source"`
	Origin      Origin    `json:"origin"`
	EventKind   string    `json:"event_type,omitempty"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Severity    string    `json:"severity,omitempty"`
	Description string    `json:"description,omitempty"`
	Components  []string  `json:"components"`
	Link        string    `json:"link,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
