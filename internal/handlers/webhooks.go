package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/pipeline"
	"github.com/marminbh/statuswatch/internal/signature"
)

// WebhookHandler receives push payloads and hands them to the pipeline.
// Handlers acknowledge immediately after the enqueue: the response never
// waits on (or reflects) verification, normalization or emission.
type WebhookHandler struct {
	Pipeline *pipeline.Pipeline
	Config   *config.WebhookConfig
	Logger   *zap.Logger
}

func NewWebhookHandler(pipe *pipeline.Pipeline, cfg *config.WebhookConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		Pipeline: pipe,
		Config:   cfg,
		Logger:   logger,
	}
}

// IncidentIO handles POST /webhook/incident-io: svix-style signature
// headers, timestamped-HMAC scheme.
func (h *WebhookHandler) IncidentIO(c *fiber.Ctx) error {
	payload, ok := h.readJSONBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	h.Pipeline.EnqueuePush("incident.io", payload, pipeline.PushSignature{
		Scheme:    signature.SchemeTimestamped,
		MsgID:     c.Get("webhook-id"),
		Timestamp: c.Get("webhook-timestamp"),
		Value:     c.Get("webhook-signature"),
		Secret:    h.Config.IncidentIOSecret,
	})

	return h.acknowledge(c)
}

// Generic handles POST /webhook/generic/:provider: plain-HMAC scheme, with
// the signature taken from X-Signature or X-Hub-Signature-256.
func (h *WebhookHandler) Generic(c *fiber.Ctx) error {
	payload, ok := h.readJSONBody(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	sig := c.Get("X-Signature")
	if sig == "" {
		sig = c.Get("X-Hub-Signature-256")
	}

	h.Pipeline.EnqueuePush(c.Params("provider"), payload, pipeline.PushSignature{
		Scheme: signature.SchemePlain,
		Value:  sig,
		Secret: h.Config.GenericSecret,
	})

	return h.acknowledge(c)
}

// readJSONBody copies the request body out of fiber's reusable buffer and
// rejects payloads that are not valid JSON before they reach the pipeline.
func (h *WebhookHandler) readJSONBody(c *fiber.Ctx) ([]byte, bool) {
	// The copy matters: the pipeline processes the payload after this
	// handler returns, and fiber recycles the request buffer.
	payload := append([]byte(nil), c.Body()...)
	if !json.Valid(payload) {
		h.Logger.Warn("Rejected malformed webhook body",
			zap.String("path", c.Path()),
			zap.Int("bytes", len(payload)),
		)
		return nil, false
	}
	return payload, true
}

func (h *WebhookHandler) acknowledge(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "received",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
