package handlers_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/dedup"
	"github.com/marminbh/statuswatch/internal/handlers"
	"github.com/marminbh/statuswatch/internal/pipeline"
	"github.com/marminbh/statuswatch/internal/routes"
	"github.com/marminbh/statuswatch/internal/sink"
)

func newTestApp(t *testing.T) (*fiber.App, *pipeline.Pipeline, *dedup.Store) {
	t.Helper()

	store := dedup.NewStore()
	pipe := pipeline.New(store, sink.NewConsoleWriter(io.Discard), config.PipelineConfig{QueueSize: 32, Workers: 2}, zap.NewNop())
	pipe.Start()
	t.Cleanup(pipe.Stop)

	app := fiber.New()
	webhooks := handlers.NewWebhookHandler(pipe, &config.WebhookConfig{}, zap.NewNop())
	health := handlers.NewHealthHandler(store, nil, nil)
	routes.SetupRoutes(app, webhooks, health)

	return app, pipe, store
}

func TestIncidentIOAcceptsValidJSON(t *testing.T) {
	app, _, _ := newTestApp(t)

	body := `{"data":{"incident":{"id":"abc","name":"API errors"}}}`
	req := httptest.NewRequest("POST", "/webhook/incident-io", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var ack map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "received", ack["status"])
	assert.NotEmpty(t, ack["timestamp"])
}

func TestIncidentIORejectsMalformedJSON(t *testing.T) {
	app, _, store := newTestApp(t)

	req := httptest.NewRequest("POST", "/webhook/incident-io", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, store.Size())
}

func TestGenericAcceptsValidJSON(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/webhook/generic/acme", strings.NewReader(`{"id":"g-1","name":"Edge outage"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256=irrelevant-without-secret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGenericRejectsMalformedJSON(t *testing.T) {
	app, _, _ := newTestApp(t)

	req := httptest.NewRequest("POST", "/webhook/generic/acme", strings.NewReader(`not json at all`))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app, _, store := newTestApp(t)
	store.Mark("seen-1")
	store.Mark("seen-2")

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.SeenIncidents)
}

func TestStatsEndpoint(t *testing.T) {
	app, _, store := newTestApp(t)
	store.Mark("seen-1")

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats["seen_incidents_count"])
}

func TestRootBanner(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var banner map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&banner))
	assert.Equal(t, "running", banner["status"])
}
