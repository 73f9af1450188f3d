package handlers

import (
	"errors"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/core/upload"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UploadHandler struct {
	fittingService *services.FittingService
}

func NewUploadHandler(fittingService *services.FittingService) *UploadHandler {
	return &UploadHandler{
		fittingService: fittingService,
	}
}

// UploadPhoto godoc
// @Summary Upload a photo for virtual fitting
// @Description Upload one JPEG/PNG/WebP photo; returns the opaque name to use in a fitting request
// @Tags Fitting
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file true "Photo to upload"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/uploads/photo [post]
func (h *UploadHandler) UploadPhoto(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "missing_file",
			"error": "no photo uploaded",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "partial_upload",
			"error": "uploaded photo could not be read",
		})
	}
	defer file.Close()

	stored, err := h.fittingService.StorePhoto(file)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "invalid_file_type",
				"error": "only JPEG, PNG and WebP images are accepted",
			})
		case errors.Is(err, upload.ErrTooLarge):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "file_too_large",
				"error": "photo exceeds the maximum allowed size",
			})
		case errors.Is(err, upload.ErrEmptyUpload):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "empty_upload",
				"error": "uploaded photo is empty",
			})
		default:
			log.Printf("❌ Failed to store photo: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":  "storage_error",
				"error": "failed to store photo",
			})
		}
	}

	log.Printf("📸 Photo stored as %s (%d bytes)", stored.Name, stored.Size)
	return c.JSON(fiber.Map{
		"photo_name": stored.Name,
		"mime":       stored.MIME,
		"size":       stored.Size,
	})
}
