package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/core/payment"
	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cart reconciliation states
const (
	CartStateCreditsOnly      = "credits_only"
	CartStateConflictDetected = "conflict_detected"
)

// Conflict resolution actions
const (
	ResolveClearAndAdd         = "clear_and_add"
	ResolveProceedWithExisting = "proceed_with_existing"
)

var (
	ErrCartConflict    = errors.New("cart contains unrelated items")
	ErrCartNotReady    = errors.New("cart does not hold a credit package")
	ErrPackageNotFound = errors.New("credit package not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// CartStatus is the reconciler's answer: the known cart state plus what the
// payment step needs to render.
type CartStatus struct {
	State           string           `json:"state"`
	Cart            *models.Cart     `json:"cart"`
	CartTotal       float64          `json:"cart_total"`
	PaymentMethods  []string         `json:"payment_methods"`
	ConflictItems   models.CartItems `json:"conflict_items,omitempty"`
}

// CheckoutResult is the normalized outcome of a checkout attempt.
type CheckoutResult struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Outcome       string    `json:"outcome"`
	RedirectURL   string    `json:"redirect_url,omitempty"`
	DeclineReason string    `json:"decline_reason,omitempty"`
	Retryable     bool      `json:"retryable"`
	Message       string    `json:"message,omitempty"`
	Balance       int       `json:"balance,omitempty"`
}

// CheckoutService owns the cart reconciler and the payment flow around it.
type CheckoutService struct {
	cartRepo      repositories.CartRepo
	orderRepo     repositories.OrderRepo
	packageRepo   repositories.PackageRepo
	activityRepo  repositories.ActivityRepo
	creditService *CreditService
	gateway       payment.Gateway
	returnURL     string
	currency      string
}

func NewCheckoutService(
	cartRepo repositories.CartRepo,
	orderRepo repositories.OrderRepo,
	packageRepo repositories.PackageRepo,
	activityRepo repositories.ActivityRepo,
	creditService *CreditService,
	gateway payment.Gateway,
	returnURL, currency string,
) *CheckoutService {
	return &CheckoutService{
		cartRepo:      cartRepo,
		orderRepo:     orderRepo,
		packageRepo:   packageRepo,
		activityRepo:  activityRepo,
		creditService: creditService,
		gateway:       gateway,
		returnURL:     returnURL,
		currency:      currency,
	}
}

// EnsureCreditsInCart brings the cart into the single known pre-checkout
// state. Safe to call repeatedly: a cart that already holds the package is a
// no-op, and a conflicting cart is reported without being mutated.
func (s *CheckoutService) EnsureCreditsInCart(userID, packageID uuid.UUID) (*CartStatus, error) {
	pkg, err := s.packageRepo.GetByID(packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}

	cart, err := s.activeCart(userID)
	if err != nil {
		return nil, err
	}

	if cart.HasForeignItems() {
		// Never silently merge over items another flow put here.
		return &CartStatus{
			State:         CartStateConflictDetected,
			Cart:          cart,
			CartTotal:     cart.TotalAmount,
			ConflictItems: cart.Items,
		}, nil
	}

	if !cart.HasCreditPackage() {
		cart.AddItem(models.CartItem{
			ItemType: models.CartItemCreditPackage,
			RefID:    pkg.ID.String(),
			Name:     pkg.Name,
			Quantity: 1,
			Price:    pkg.Price,
		})
		if err := s.cartRepo.Update(cart); err != nil {
			return nil, err
		}
	}

	return &CartStatus{
		State:          CartStateCreditsOnly,
		Cart:           cart,
		CartTotal:      cart.TotalAmount,
		PaymentMethods: s.paymentMethods(),
	}, nil
}

// ResolveConflict applies the user's choice for a conflicted cart.
// ClearAndAdd empties the cart and retries the add; ProceedWithExisting
// abandons the credit flow and leaves the cart untouched.
func (s *CheckoutService) ResolveConflict(userID, packageID uuid.UUID, action string) (*CartStatus, error) {
	switch action {
	case ResolveClearAndAdd:
		cart, err := s.activeCart(userID)
		if err != nil {
			return nil, err
		}
		cart.ClearItems()
		if err := s.cartRepo.Update(cart); err != nil {
			return nil, err
		}
		return s.EnsureCreditsInCart(userID, packageID)

	case ResolveProceedWithExisting:
		cart, err := s.activeCart(userID)
		if err != nil {
			return nil, err
		}
		return &CartStatus{
			State:     CartStateConflictDetected,
			Cart:      cart,
			CartTotal: cart.TotalAmount,
		}, nil

	default:
		return nil, fmt.Errorf("unknown resolution action %q", action)
	}
}

// ClearCart empties the user's active cart.
func (s *CheckoutService) ClearCart(userID uuid.UUID) error {
	cart, err := s.cartRepo.GetActiveCart(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if cart.IsEmpty() {
		return nil
	}
	cart.ClearItems()
	return s.cartRepo.Update(cart)
}

// CheckoutRequest carries the payment details for a charge attempt.
type CheckoutRequest struct {
	PaymentMethodToken string `json:"payment_method_token"`
	Express            bool   `json:"express"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	IPAddress          string `json:"-"`
	UserAgent          string `json:"-"`
}

// Checkout charges the cart's credit package and grants credits on success.
// Credits are granted only after the gateway confirms payment, keyed on the
// payment reference so webhook-driven finalization cannot double-grant.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID, req *CheckoutRequest) (*CheckoutResult, error) {
	cart, err := s.cartRepo.GetActiveCart(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotReady
		}
		return nil, err
	}
	if cart.HasForeignItems() {
		return nil, ErrCartConflict
	}
	if !cart.HasCreditPackage() {
		return nil, ErrCartNotReady
	}

	if req.Express && !s.gateway.SupportsExpress() {
		// Capability absence is a fallback, not an error.
		log.Printf("⏭️ Express payment unsupported by %s, falling back to card path", s.gateway.Name())
		req.Express = false
	}

	credits, err := s.cartCredits(cart)
	if err != nil {
		return nil, err
	}

	order, err := s.createOrder(userID, cart, credits)
	if err != nil {
		return nil, err
	}

	method := "card"
	if req.Express {
		method = "express"
	}

	charge, err := s.gateway.Charge(ctx, &payment.ChargeRequest{
		OrderID:            order.ID,
		OrderNumber:        order.OrderNumber,
		Amount:             order.TotalAmount,
		Currency:           order.Currency,
		PaymentMethodToken: req.PaymentMethodToken,
		Express:            req.Express,
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		ReturnURL:          s.returnURL,
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Outcome:       charge.Outcome,
		RedirectURL:   charge.RedirectURL,
		DeclineReason: charge.DeclineReason,
		Retryable:     charge.Retryable,
		Message:       charge.Message,
	}

	switch charge.Outcome {
	case payment.OutcomeSucceeded:
		if err := s.completePaidOrder(order, charge.Reference, method, cart.ID, req); err != nil {
			return nil, err
		}
		balance, _ := s.creditService.Balance(userID)
		result.Balance = balance

	case payment.OutcomeRequiresAction:
		// Keep the pending reference so the webhook / return redirect can
		// finalize the same order.
		if err := s.orderRepo.MarkPending(order.ID, charge.Reference); err != nil {
			log.Printf("⚠️ Failed to record pending reference on order %s: %v", order.OrderNumber, err)
		}

	case payment.OutcomeDeclined, payment.OutcomeTransientFailure:
		// Persist the reference so the gateway's payment_failed event
		// resolves against this order instead of erroring forever.
		if charge.Reference != "" {
			if err := s.orderRepo.MarkFailed(order.ID, charge.Reference); err != nil {
				log.Printf("⚠️ Failed to record declined reference on order %s: %v", order.OrderNumber, err)
			}
		}
		s.logPurchase(userID, models.ActivityStatusError, charge.DeclineReason+" "+charge.Message, req)
	}

	return result, nil
}

// FinalizePayment resumes an order after an out-of-band authentication step
// or a provider webhook. Idempotent: replayed references grant nothing.
func (s *CheckoutService) FinalizePayment(ctx context.Context, reference string) (*CheckoutResult, error) {
	order, err := s.orderRepo.GetByPaymentReference(reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order for payment reference %s", ErrOrderNotFound, reference)
		}
		return nil, err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return &CheckoutResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Outcome:     payment.OutcomeSucceeded,
		}, nil
	}
	if order.PaymentStatus == models.PaymentStatusFailed {
		// Already settled as declined; duplicate failure events are no-ops.
		return &CheckoutResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Outcome:     payment.OutcomeDeclined,
		}, nil
	}

	charge, err := s.gateway.Finalize(ctx, reference)
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Outcome:       charge.Outcome,
		DeclineReason: charge.DeclineReason,
		Retryable:     charge.Retryable,
		Message:       charge.Message,
	}

	switch charge.Outcome {
	case payment.OutcomeSucceeded:
		if err := s.grantForOrder(order, reference, "card"); err != nil {
			return nil, err
		}
	case payment.OutcomeDeclined:
		if err := s.orderRepo.MarkFailed(order.ID, reference); err != nil {
			log.Printf("⚠️ Failed to mark order %s failed: %v", order.OrderNumber, err)
		}
	}
	return result, nil
}

// Order returns one of the caller's orders, for status polling after a
// redirect-based payment step.
func (s *CheckoutService) Order(userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) activeCart(userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.cartRepo.GetActiveCart(userID)
	if err == nil {
		if cart.IsExpired() {
			if err := s.cartRepo.ExpireCart(cart.ID); err != nil {
				return nil, err
			}
			return s.newCart(userID)
		}
		return cart, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.newCart(userID)
	}
	return nil, err
}

func (s *CheckoutService) newCart(userID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{
		UserID: userID,
		Status: models.CartStatusActive,
		Items:  models.CartItems{},
	}
	if err := s.cartRepo.Create(cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CheckoutService) paymentMethods() []string {
	methods := []string{"card"}
	if s.gateway.SupportsExpress() {
		methods = append(methods, "express")
	}
	return methods
}

func (s *CheckoutService) cartCredits(cart *models.Cart) (int, error) {
	credits := 0
	for _, item := range cart.Items {
		if item.ItemType != models.CartItemCreditPackage {
			continue
		}
		pkgID, err := uuid.Parse(item.RefID)
		if err != nil {
			return 0, fmt.Errorf("invalid package reference in cart: %w", err)
		}
		pkg, err := s.packageRepo.GetByID(pkgID)
		if err != nil {
			return 0, err
		}
		credits += pkg.Credits * item.Quantity
	}
	if credits == 0 {
		return 0, ErrCartNotReady
	}
	return credits, nil
}

func (s *CheckoutService) createOrder(userID uuid.UUID, cart *models.Cart, credits int) (*models.Order, error) {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:      userID,
		OrderNumber: fmt.Sprintf("CRD-%d-%s", time.Now().Unix(), uuid.New().String()[:8]),
		Items:       items,
		Credits:     credits,
		TotalAmount: cart.TotalAmount,
		Currency:    s.currency,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *CheckoutService) completePaidOrder(order *models.Order, reference, method string, cartID uuid.UUID, req *CheckoutRequest) error {
	if err := s.grantForOrder(order, reference, method); err != nil {
		return err
	}
	if err := s.cartRepo.MarkCheckedOut(cartID); err != nil {
		log.Printf("⚠️ Failed to mark cart %s checked out: %v", cartID, err)
	}
	s.logPurchase(order.UserID, models.ActivityStatusSuccess, "", req)
	return nil
}

func (s *CheckoutService) grantForOrder(order *models.Order, reference, method string) error {
	if err := s.orderRepo.MarkPaid(order.ID, reference, method); err != nil {
		return err
	}
	if err := s.creditService.GrantPurchased(order.UserID, order.Credits, reference); err != nil {
		return fmt.Errorf("payment captured but credit grant failed: %w", err)
	}
	log.Printf("✅ Order %s paid, granted %d credits to %s", order.OrderNumber, order.Credits, order.UserID)
	return nil
}

func (s *CheckoutService) logPurchase(userID uuid.UUID, status, errMsg string, req *CheckoutRequest) {
	entry := &models.ActivityLog{
		UserID:       userID,
		Action:       models.ActivityCreditPurchase,
		Status:       status,
		ErrorMessage: errMsg,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}
	if err := s.activityRepo.Create(entry); err != nil {
		log.Printf("⚠️ Failed to write activity log: %v", err)
	}
}
