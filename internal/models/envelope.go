package models

import (
	"bytes"
	"encoding/json"
)

// PushEnvelope is the outer shape of an inbound webhook payload. Providers
// disagree on where the incident record lives: incident.io-style payloads
// nest it under data.incident, others under data, and the flattest ones are
// the record itself. ResolveRecord picks the variant once, structurally.
type PushEnvelope struct {
	EventType string          `json:"event_type"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// IncidentRecord is the provider incident record after envelope resolution.
type IncidentRecord struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Title              string         `json:"title"`
	Status             LabelOrString  `json:"status"`
	Severity           LabelOrString  `json:"severity"`
	Summary            string         `json:"summary"`
	Description        string         `json:"description"`
	AffectedComponents []ComponentRef `json:"affected_components"`
	Permalink          string         `json:"permalink"`
	URL                string         `json:"url"`
	CreatedAt          string         `json:"created_at"`
}

// ResolveRecord unwraps the envelope to the incident record: data.incident,
// else data, else the raw payload itself. Unknown shapes decode to a zero
// record rather than failing; the normalizer applies field fallbacks.
func (e *PushEnvelope) ResolveRecord(payload []byte) IncidentRecord {
	var record IncidentRecord

	candidate := payload
	if isJSONObject(e.Data) {
		candidate = e.Data
		var inner struct {
			Incident json.RawMessage `json:"incident"`
		}
		if err := json.Unmarshal(e.Data, &inner); err == nil && isJSONObject(inner.Incident) {
			candidate = inner.Incident
		}
	}

	// Field-level type mismatches surface as a zero record, not an error.
	_ = json.Unmarshal(candidate, &record)
	return record
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// LabelOrString is a field providers send either as a plain string or as a
// structured record carrying a display label, e.g. {"label": "Investigating"}.
type LabelOrString struct {
	Value string
}

func (l *LabelOrString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.Value = s
		return nil
	}
	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		l.Value = obj.Label
		return nil
	}
	// Not a shape we understand; leave empty for the normalizer's default.
	l.Value = ""
	return nil
}

func (l LabelOrString) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Value)
}

// ComponentRef is an affected-component entry, either {"name": "API"} or a
// bare string.
type ComponentRef struct {
	Name string `json:"name"`
}

func (c *ComponentRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		c.Name = obj.Name
	}
	return nil
}
