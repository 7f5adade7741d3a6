// Package sink delivers newly-seen incidents downstream. The pipeline
// guarantees each sink sees a given identity at most once per process
// lifetime; sinks only need to deliver, not to dedup.
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/models"
)

type Sink interface {
	Name() string
	Emit(ctx context.Context, incident models.Incident) error
}

// Multi fans one emission out to several sinks. A sink failure is logged
// and does not stop delivery to the others — and never un-marks the id.
type Multi struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMulti(logger *zap.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Emit(ctx context.Context, incident models.Incident) error {
	for _, s := range m.sinks {
		if err := s.Emit(ctx, incident); err != nil {
			m.logger.Error("Sink emission failed",
				zap.String("sink", s.Name()),
				zap.String("incident_id", incident.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
