package handlers

import (
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/core/auth"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
)

type CreditHandler struct {
	creditService *services.CreditService
}

func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
	}
}

// GetBalance godoc
// @Summary Get credit balance
// @Description Get the caller's remaining fitting credits
// @Tags Credits
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/credits [get]
func (h *CreditHandler) GetBalance(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	balance, err := h.creditService.Balance(userID)
	if err != nil {
		log.Printf("❌ Failed to read balance for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to read credit balance",
		})
	}

	return c.JSON(fiber.Map{
		"credits_remaining": balance,
	})
}

// GetHistory godoc
// @Summary List credit transactions
// @Description List the caller's recent credit ledger entries
// @Tags Credits
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/credits/history [get]
func (h *CreditHandler) GetHistory(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	history, err := h.creditService.History(userID, c.QueryInt("limit", 50))
	if err != nil {
		log.Printf("❌ Failed to read credit history for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to read credit history",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": history,
	})
}
