package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marminbh/statuswatch/internal/models"
	"github.com/marminbh/statuswatch/internal/rabbitmq"
)

// AMQP publishes each incident as a JSON message to the configured queue.
type AMQP struct {
	conn *rabbitmq.Connection
}

func NewAMQP(conn *rabbitmq.Connection) *AMQP {
	return &AMQP{conn: conn}
}

func (a *AMQP) Name() string { return "amqp" }

func (a *AMQP) Emit(_ context.Context, incident models.Incident) error {
	body, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}
	if err := a.conn.Publish(body); err != nil {
		return fmt.Errorf("failed to publish incident %s: %w", incident.ID, err)
	}
	return nil
}
