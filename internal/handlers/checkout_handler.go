package handlers

import (
	"errors"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/core/auth"
	"github.com/fitlook/virtual-tryon-be/internal/core/payment"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/fitlook/virtual-tryon-be/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	packageRepo     repositories.PackageRepo
}

func NewCheckoutHandler(checkoutService *services.CheckoutService, packageRepo repositories.PackageRepo) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		packageRepo:     packageRepo,
	}
}

// ListPackages godoc
// @Summary List credit packages
// @Description List purchasable credit packages
// @Tags Checkout
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/packages [get]
func (h *CheckoutHandler) ListPackages(c *fiber.Ctx) error {
	packages, err := h.packageRepo.ListActive()
	if err != nil {
		log.Printf("❌ Failed to list packages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to list packages",
		})
	}
	return c.JSON(fiber.Map{
		"packages": packages,
	})
}

type ensureCartBody struct {
	PackageID string `json:"package_id"`
}

// EnsureCart godoc
// @Summary Put a credit package in the cart
// @Description Reconcile the cart to hold exactly one credit package; reports a conflict when foreign items are present
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body ensureCartBody true "Package selection"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/checkout/cart [post]
func (h *CheckoutHandler) EnsureCart(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	var body ensureCartBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid request",
		})
	}
	packageID, err := uuid.Parse(body.PackageID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "package_id must be a valid id",
		})
	}

	status, err := h.checkoutService.EnsureCreditsInCart(userID, packageID)
	if err != nil {
		if errors.Is(err, services.ErrPackageNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"code":  "not_found",
				"error": "credit package not found",
			})
		}
		log.Printf("❌ Cart reconciliation failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "cart reconciliation failed",
		})
	}

	if status.State == services.CartStateConflictDetected {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":   "conflict_cart",
			"error":  "cart contains unrelated items, choose how to proceed",
			"status": status,
		})
	}
	return c.JSON(fiber.Map{
		"status": status,
	})
}

type resolveCartBody struct {
	PackageID string `json:"package_id"`
	Action    string `json:"action"` // clear_and_add, proceed_with_existing
}

// ResolveCart godoc
// @Summary Resolve a cart conflict
// @Description Apply the user's choice for a conflicted cart
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body resolveCartBody true "Resolution"
// @Success 200 {object} map[string]interface{}
// @Router /api/checkout/cart/resolve [post]
func (h *CheckoutHandler) ResolveCart(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	var body resolveCartBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid request",
		})
	}
	packageID, err := uuid.Parse(body.PackageID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "package_id must be a valid id",
		})
	}
	if body.Action != services.ResolveClearAndAdd && body.Action != services.ResolveProceedWithExisting {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "action must be clear_and_add or proceed_with_existing",
		})
	}

	status, err := h.checkoutService.ResolveConflict(userID, packageID, body.Action)
	if err != nil {
		log.Printf("❌ Cart resolution failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "cart resolution failed",
		})
	}
	return c.JSON(fiber.Map{
		"status": status,
	})
}

// ClearCart godoc
// @Summary Clear the cart
// @Tags Checkout
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/checkout/cart [delete]
func (h *CheckoutHandler) ClearCart(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	if err := h.checkoutService.ClearCart(userID); err != nil {
		log.Printf("❌ Failed to clear cart for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to clear cart",
		})
	}
	return c.JSON(fiber.Map{
		"message": "cart cleared",
	})
}

// GetOrder godoc
// @Summary Get an order
// @Description Read one of the caller's orders, typically to poll payment status after a redirect
// @Tags Checkout
// @Produce json
// @Param id path string true "Order id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/checkout/orders/{id} [get]
func (h *CheckoutHandler) GetOrder(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "order id must be a valid id",
		})
	}

	order, err := h.checkoutService.Order(userID, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"code":  "not_found",
				"error": "order not found",
			})
		}
		log.Printf("❌ Failed to read order %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":  "storage_error",
			"error": "failed to read order",
		})
	}
	return c.JSON(fiber.Map{
		"order": order,
	})
}

type checkoutBody struct {
	PaymentMethodToken string `json:"payment_method_token"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
}

// Checkout godoc
// @Summary Pay for the credit package in the cart
// @Description Charge the payment method; credits are granted once payment is confirmed
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body checkoutBody true "Payment details"
// @Success 200 {object} map[string]interface{}
// @Router /api/checkout [post]
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	return h.processCheckout(c, false)
}

// ExpressCheckout godoc
// @Summary Pay with a device wallet
// @Description Charge a payment-request wallet token; falls back to the card path when the gateway lacks the capability
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body checkoutBody true "Payment details"
// @Success 200 {object} map[string]interface{}
// @Router /api/checkout/express [post]
func (h *CheckoutHandler) ExpressCheckout(c *fiber.Ctx) error {
	return h.processCheckout(c, true)
}

func (h *CheckoutHandler) processCheckout(c *fiber.Ctx, express bool) error {
	userID := auth.UserID(c)

	var body checkoutBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "invalid request",
		})
	}
	if body.PaymentMethodToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":  "validation_error",
			"error": "payment_method_token is required",
		})
	}

	result, err := h.checkoutService.Checkout(c.Context(), userID, &services.CheckoutRequest{
		PaymentMethodToken: body.PaymentMethodToken,
		Express:            express,
		CustomerName:       body.CustomerName,
		CustomerEmail:      body.CustomerEmail,
		IPAddress:          c.IP(),
		UserAgent:          c.Get("User-Agent"),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCartConflict):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"code":  "conflict_cart",
				"error": "cart contains unrelated items, resolve the conflict first",
			})
		case errors.Is(err, services.ErrCartNotReady):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":  "validation_error",
				"error": "cart does not hold a credit package",
			})
		default:
			log.Printf("❌ Checkout failed for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":  "storage_error",
				"error": "checkout failed",
			})
		}
	}

	switch result.Outcome {
	case payment.OutcomeSucceeded:
		return c.JSON(fiber.Map{
			"code":   "paid",
			"result": result,
		})
	case payment.OutcomeRequiresAction:
		return c.JSON(fiber.Map{
			"code":   "payment_requires_action",
			"result": result,
		})
	case payment.OutcomeDeclined:
		code := "payment_declined"
		if result.Retryable {
			code = "payment_retryable"
		}
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"code":   code,
			"result": result,
		})
	default: // transient failure
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"code":   "payment_retryable",
			"result": result,
		})
	}
}
