package handlers

import (
	"errors"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
)

type WebhookHandler struct {
	checkoutService *services.CheckoutService
}

func NewWebhookHandler(checkoutService *services.CheckoutService) *WebhookHandler {
	return &WebhookHandler{
		checkoutService: checkoutService,
	}
}

// paymentEvent is the slice of the gateway webhook payload this service
// cares about.
type paymentEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// ReceivePayment godoc
// @Summary Payment gateway webhook
// @Description Finalize orders from asynchronous gateway events; duplicate deliveries are no-ops
// @Tags Webhook
// @Accept json
// @Produce json
// @Param payload body map[string]interface{} true "Gateway event"
// @Success 200 {object} map[string]interface{}
// @Router /api/webhooks/payment [post]
func (h *WebhookHandler) ReceivePayment(c *fiber.Ctx) error {
	var event paymentEvent
	if err := c.BodyParser(&event); err != nil {
		log.Printf("❌ Failed to parse payment webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid payload",
		})
	}

	log.Printf("📨 Payment webhook received - type: %s, reference: %s", event.Type, event.Data.Object.ID)

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		if event.Data.Object.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "validation_error",
				"error": "missing payment reference",
			})
		}
		result, err := h.checkoutService.FinalizePayment(c.Context(), event.Data.Object.ID)
		if err != nil {
			if errors.Is(err, services.ErrOrderNotFound) {
				// References we never created an order for are acknowledged
				// so the gateway stops redelivering them.
				log.Printf("⏭️ Ignoring payment event for unknown reference %s", event.Data.Object.ID)
				return c.JSON(fiber.Map{"status": "ignored"})
			}
			// Returning an error makes the gateway redeliver; finalization is
			// idempotent so that is safe.
			log.Printf("❌ Webhook finalization failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":  "storage_error",
				"error": "finalization failed",
			})
		}
		return c.JSON(fiber.Map{
			"status":  "processed",
			"outcome": result.Outcome,
		})

	default:
		return c.JSON(fiber.Map{"status": "ignored"})
	}
}
