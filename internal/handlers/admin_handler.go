package handlers

import (
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	activityRepo  repositories.ActivityRepo
	creditService *services.CreditService
}

func NewAdminHandler(activityRepo repositories.ActivityRepo, creditService *services.CreditService) *AdminHandler {
	return &AdminHandler{
		activityRepo:  activityRepo,
		creditService: creditService,
	}
}

// ListActivity godoc
// @Summary List activity log entries
// @Description List recent fitting and purchase activity, newest first
// @Tags Admin
// @Produce json
// @Param user_id query string false "Filter by user"
// @Param action query string false "Filter by action"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/activity [get]
func (h *AdminHandler) ListActivity(c *fiber.Ctx) error {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "validation_error",
				"error": "user_id must be a valid id",
			})
		}
		userID = &id
	}

	entries, err := h.activityRepo.List(userID, c.Query("action"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		log.Printf("❌ Failed to list activity: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to list activity",
		})
	}
	return c.JSON(fiber.Map{
		"entries": entries,
	})
}

type adjustCreditsBody struct {
	UserID string `json:"user_id"`
	Target int    `json:"target"`
}

// AdjustCredits godoc
// @Summary Correct a user's credit balance
// @Description Move the balance toward the target value; not atomic against concurrent user activity
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body adjustCreditsBody true "Correction"
// @Success 200 {object} map[string]interface{}
// @Router /api/admin/credits/adjust [post]
func (h *AdminHandler) AdjustCredits(c *fiber.Ctx) error {
	var body adjustCreditsBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid request",
		})
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "user_id must be a valid id",
		})
	}
	if body.Target < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "target cannot be negative",
		})
	}

	balance, err := h.creditService.AdminAdjust(userID, body.Target)
	if err != nil {
		log.Printf("❌ Credit adjustment failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "credit adjustment failed",
		})
	}
	return c.JSON(fiber.Map{
		"credits_remaining": balance,
	})
}
