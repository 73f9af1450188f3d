package handlers

import (
	"errors"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/core/auth"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type FittingHandler struct {
	fittingService *services.FittingService
	jwtService     *auth.JWTService
}

func NewFittingHandler(fittingService *services.FittingService, jwtService *auth.JWTService) *FittingHandler {
	return &FittingHandler{
		fittingService: fittingService,
		jwtService:     jwtService,
	}
}

type fittingRequestBody struct {
	PhotoName string `json:"photo_name"`
	ProductID string `json:"product_id"`
}

// RequestFitting godoc
// @Summary Run a virtual fitting
// @Description Generate a try-on composite from an uploaded photo and a product; debits one credit on success
// @Tags Fitting
// @Accept json
// @Produce json
// @Param request body fittingRequestBody true "Fitting request"
// @Success 200 {object} map[string]interface{}
// @Failure 402 {object} map[string]interface{}
// @Router /api/fittings [post]
func (h *FittingHandler) RequestFitting(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	var body fittingRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid request",
		})
	}
	if body.PhotoName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "photo_name is required",
		})
	}
	productID, err := uuid.Parse(body.ProductID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "product_id must be a valid id",
		})
	}

	result, err := h.fittingService.RequestFitting(c.Context(), userID, &services.FittingRequest{
		PhotoName: body.PhotoName,
		ProductID: productID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		return h.fittingError(c, err)
	}

	token, err := h.jwtService.GenerateDownloadToken(userID, result.ResultName)
	if err != nil {
		log.Printf("❌ Failed to issue download token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to issue download token",
		})
	}

	return c.JSON(fiber.Map{
		"result_name":       result.ResultName,
		"mime":              result.MIME,
		"credits_remaining": result.Balance,
		"download_token":    token,
	})
}

// DownloadResult godoc
// @Summary Download a fitting result
// @Description Download a generated composite; requires the download token issued with the result
// @Tags Fitting
// @Produce image/jpeg
// @Param name path string true "Result name"
// @Param token query string true "Download token"
// @Success 200 {file} binary
// @Failure 401 {object} map[string]interface{}
// @Router /api/fittings/results/{name} [get]
func (h *FittingHandler) DownloadResult(c *fiber.Ctx) error {
	name := c.Params("name")
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":  "unauthorized",
			"error": "download token is required",
		})
	}

	if _, err := h.jwtService.ValidateDownloadToken(token, name); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"code":  "unauthorized",
			"error": "invalid or expired download token",
		})
	}

	rc, mime, err := h.fittingService.OpenResult(name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"code":  "not_found",
			"error": "result not found or already purged",
		})
	}

	c.Set("Content-Type", mime)
	return c.SendStream(rc)
}

func (h *FittingHandler) fittingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"code":  "insufficient_credits",
			"error": "not enough credits, purchase a package to continue",
		})
	case errors.Is(err, services.ErrPhotoNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "uploaded photo not found, upload it again",
		})
	case errors.Is(err, services.ErrProductNotEligible):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "this product is not available for virtual fitting",
		})
	case errors.Is(err, services.ErrPhotoRejected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "photo_rejected",
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrProviderFailed):
		log.Printf("❌ Fitting generation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"code":  "provider_unavailable",
			"error": "generation failed, no credit was charged",
		})
	default:
		log.Printf("❌ Fitting request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "fitting request failed",
		})
	}
}
