package models

import (
	"strings"
	"time"
)

// ArchivedIncident is the Postgres row written by the archive sink for each
// emitted incident. This is an audit trail of emissions only; the dedup
// seen-set itself is never persisted or reloaded.
type ArchivedIncident struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IncidentID  string    `gorm:"not null;index" json:"incident_id"`
	SourceName  string    `gorm:"not null" json:"source_name"`
	Origin      string    `gorm:"not null" json:"origin"`
	EventKind   string    `json:"event_kind"`
	Title       string    `gorm:"not null" json:"title"`
	Status      string    `gorm:"not null" json:"status"`
	Severity    string    `json:"severity"`
	Description string    `gorm:"type:text" json:"description"`
	Components  string    `json:"components"` // comma-joined display list
	Link        string    `json:"link"`
	OccurredAt  time.Time `gorm:"not null" json:"occurred_at"`
	EmittedAt   time.Time `gorm:"not null;default:now()" json:"emitted_at"`
}

func (ArchivedIncident) TableName() string {
	return "incident_archive"
}

// NewArchivedIncident maps an emitted incident onto its archive row.
func NewArchivedIncident(inc Incident, emittedAt time.Time) ArchivedIncident {
	return ArchivedIncident{
		IncidentID:  inc.ID,
		SourceName:  inc.SourceName,
		Origin:      inc.Origin.String(),
		EventKind:   inc.EventKind,
		Title:       inc.Title,
		Status:      inc.Status,
		Severity:    inc.Severity,
		Description: inc.Description,
		Components:  strings.Join(inc.Components, ", "),
		Link:        inc.Link,
		OccurredAt:  inc.OccurredAt,
		EmittedAt:   emittedAt,
	}
}
