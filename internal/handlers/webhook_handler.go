package handlers

import (
	"log"

	"toko-pay/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	reconciler *services.ReconcileService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler *services.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// RegisterRoutes registers the callback route under /payments/monobank.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/monobank/webhook", h.HandleMonobankWebhook)
}

// HandleMonobankWebhook reconciles the callback. The reply is always 200 {"status":"ok"},
// whatever the outcome.
func (h *WebhookHandler) HandleMonobankWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer once the handler returns
	payload := append([]byte(nil), c.Body()...)

	outcome := h.reconciler.HandleCallback(c.UserContext(), payload)
	log.Printf("Webhook handled: %s", outcome)

	return c.JSON(fiber.Map{"status": "ok"})
}
