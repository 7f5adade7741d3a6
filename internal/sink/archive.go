package sink

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marminbh/statuswatch/internal/models"
)

// Archive inserts each emitted incident into the Postgres archive table.
// Emission history only — the dedup seen-set is never read back from here.
type Archive struct {
	db *gorm.DB
}

func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) Emit(ctx context.Context, incident models.Incident) error {
	row := models.NewArchivedIncident(incident, time.Now().UTC())
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to archive incident %s: %w", incident.ID, err)
	}
	return nil
}
