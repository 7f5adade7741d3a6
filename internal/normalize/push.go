// Package normalize maps heterogeneous source payloads into the canonical
// Incident shape. Both normalizers are pure: no I/O, total over malformed
// input, every field with a defined fallback. The one exception is a push
// payload without an incident id, which is rejected rather than given a
// synthetic identity — a push provider's id is authoritative.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marminbh/statuswatch/internal/models"
)

// ErrNoIdentity is returned when a push payload carries no incident id.
var ErrNoIdentity = errors.New("incident record has no id")

// Push normalizes an inbound webhook payload. ingestedAt is the fallback
// for OccurredAt when the payload carries no parseable creation time.
func Push(payload []byte, sourceName string, ingestedAt time.Time) (models.Incident, error) {
	var envelope models.PushEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return models.Incident{}, fmt.Errorf("decode push payload: %w", err)
	}

	record := envelope.ResolveRecord(payload)
	if record.ID == "" {
		return models.Incident{}, ErrNoIdentity
	}

	title := record.Name
	if title == "" {
		title = record.Title
	}
	if title == "" {
		title = "Unknown Incident"
	}

	status := record.Status.Value
	if status == "" {
		status = "Unknown"
	}

	description := record.Summary
	if description == "" {
		description = record.Description
	}

	link := record.Permalink
	if link == "" {
		link = record.URL
	}

	components := make([]string, 0, len(record.AffectedComponents))
	for _, comp := range record.AffectedComponents {
		if comp.Name != "" {
			components = append(components, comp.Name)
		}
	}

	createdAt := record.CreatedAt
	if createdAt == "" {
		createdAt = envelope.CreatedAt
	}
	occurredAt, _ := ParseEventTime(createdAt, ingestedAt)

	return models.Incident{
		ID:          record.ID,
		SourceName:  sourceName,
		Origin:      models.OriginPush,
		EventKind:   envelope.EventType,
		Title:       title,
		Status:      status,
		Severity:    record.Severity.Value,
		Description: description,
		Components:  components,
		Link:        link,
		OccurredAt:  occurredAt,
	}, nil
}
