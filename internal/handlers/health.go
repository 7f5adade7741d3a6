package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/marminbh/statuswatch/internal/database"
	"github.com/marminbh/statuswatch/internal/dedup"
	"github.com/marminbh/statuswatch/internal/rabbitmq"
)

// HealthHandler exposes liveness and the dedup store's counters. RMQ and
// DB are nil when the corresponding sink is disabled.
type HealthHandler struct {
	Store *dedup.Store
	RMQ   *rabbitmq.Connection
	DB    *gorm.DB
}

func NewHealthHandler(store *dedup.Store, rmq *rabbitmq.Connection, db *gorm.DB) *HealthHandler {
	return &HealthHandler{Store: store, RMQ: rmq, DB: db}
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	SeenIncidents int               `json:"seen_incidents"`
	Services      map[string]string `json:"services,omitempty"`
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if h.RMQ != nil {
		if h.RMQ.IsHealthy() {
			services["rabbitmq"] = "healthy"
		} else {
			services["rabbitmq"] = "unhealthy: connection closed"
			status = "unhealthy"
		}
	}

	if h.DB != nil {
		if err := database.HealthCheck(ctx, h.DB); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["database"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		SeenIncidents: h.Store.Size(),
		Services:      services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

// Stats handles GET /stats
func (h *HealthHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"seen_incidents_count": h.Store.Size(),
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	})
}

// Root handles GET / with a service banner and endpoint map.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":   "Status Page Monitor",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": fiber.Map{
			"incident.io": "/webhook/incident-io",
			"generic":     "/webhook/generic/{provider_name}",
			"health":      "/health",
			"stats":       "/stats",
		},
	})
}
