package services

import (
	"context"
	"testing"

	"github.com/fitlook/virtual-tryon-be/internal/core/payment"
	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.CreditPackage{},
		&models.Cart{},
		&models.Order{},
		&models.ActivityLog{},
	))
	return db
}

// fakeGateway returns a scripted charge result and records what it was asked
// to charge.
type fakeGateway struct {
	chargeResult   *payment.ChargeResult
	finalizeResult *payment.ChargeResult
	express        bool

	lastCharge *payment.ChargeRequest
	charges    int
	finalizes  int
}

func (g *fakeGateway) Charge(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.charges++
	g.lastCharge = req
	return g.chargeResult, nil
}

func (g *fakeGateway) Finalize(ctx context.Context, reference string) (*payment.ChargeResult, error) {
	g.finalizes++
	return g.finalizeResult, nil
}

func (g *fakeGateway) SupportsExpress() bool { return g.express }
func (g *fakeGateway) Name() string          { return "fake" }

type checkoutFixture struct {
	svc     *CheckoutService
	credits *CreditService
	carts   repositories.CartRepo
	orders  repositories.OrderRepo
	gateway *fakeGateway
	pkg     *models.CreditPackage
}

func newCheckoutFixture(t *testing.T, gateway *fakeGateway) *checkoutFixture {
	t.Helper()
	db := testDB(t)

	pkg := &models.CreditPackage{Name: "Starter", Credits: 10, Price: 4.99, Currency: "usd", Active: true}
	require.NoError(t, db.Create(pkg).Error)

	cartRepo := repositories.NewCartRepo(db)
	orderRepo := repositories.NewOrderRepo(db)
	creditService := NewCreditService(repositories.NewCreditRepo(db), 3)

	svc := NewCheckoutService(
		cartRepo, orderRepo,
		repositories.NewPackageRepo(db),
		repositories.NewActivityRepo(db),
		creditService, gateway,
		"https://shop.example/checkout/return", "usd",
	)
	return &checkoutFixture{
		svc:     svc,
		credits: creditService,
		carts:   cartRepo,
		orders:  orderRepo,
		gateway: gateway,
		pkg:     pkg,
	}
}

func TestEnsureCreditsInCartIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})
	userID := uuid.New()

	status, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, CartStateCreditsOnly, status.State)
	require.Len(t, status.Cart.Items, 1)
	assert.Equal(t, 1, status.Cart.Items[0].Quantity)

	// Repeating the call must not stack a second line item.
	status, err = f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)
	require.Len(t, status.Cart.Items, 1)
	assert.Equal(t, 1, status.Cart.Items[0].Quantity)
	assert.InDelta(t, f.pkg.Price, status.CartTotal, 0.001)
}

func TestEnsureCreditsInCartReportsConflictWithoutMutating(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})
	userID := uuid.New()

	cart := &models.Cart{UserID: userID, Status: models.CartStatusActive, Items: models.CartItems{
		{ItemType: models.CartItemProduct, RefID: "sku-42", Name: "Linen Shirt", Quantity: 1, Price: 39.00, Subtotal: 39.00},
	}}
	cart.CalculateTotal()
	require.NoError(t, f.carts.Create(cart))

	status, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, CartStateConflictDetected, status.State)
	require.Len(t, status.ConflictItems, 1)

	// The foreign item must survive untouched.
	reloaded, err := f.carts.GetActiveCart(userID)
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, models.CartItemProduct, reloaded.Items[0].ItemType)
}

func TestResolveConflictClearAndAdd(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})
	userID := uuid.New()

	cart := &models.Cart{UserID: userID, Status: models.CartStatusActive, Items: models.CartItems{
		{ItemType: models.CartItemProduct, RefID: "sku-42", Name: "Linen Shirt", Quantity: 1, Price: 39.00, Subtotal: 39.00},
	}}
	cart.CalculateTotal()
	require.NoError(t, f.carts.Create(cart))

	status, err := f.svc.ResolveConflict(userID, f.pkg.ID, ResolveClearAndAdd)
	require.NoError(t, err)
	assert.Equal(t, CartStateCreditsOnly, status.State)
	require.Len(t, status.Cart.Items, 1)
	assert.Equal(t, models.CartItemCreditPackage, status.Cart.Items[0].ItemType)
}

func TestCheckoutGrantsCreditsOnSuccess(t *testing.T) {
	gateway := &fakeGateway{chargeResult: &payment.ChargeResult{
		Outcome:   payment.OutcomeSucceeded,
		Reference: "pi_success_1",
	}}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSucceeded, result.Outcome)

	// Free grant plus the purchased package.
	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 3+f.pkg.Credits, balance)

	// The cart must be consumed.
	_, err = f.carts.GetActiveCart(userID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})

	_, err := f.svc.Checkout(context.Background(), uuid.New(), &CheckoutRequest{PaymentMethodToken: "pm_card"})
	assert.ErrorIs(t, err, ErrCartNotReady)
}

func TestCheckoutConflictedCart(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})
	userID := uuid.New()

	cart := &models.Cart{UserID: userID, Status: models.CartStatusActive, Items: models.CartItems{
		{ItemType: models.CartItemProduct, RefID: "sku-42", Name: "Linen Shirt", Quantity: 1, Price: 39.00, Subtotal: 39.00},
	}}
	require.NoError(t, f.carts.Create(cart))

	_, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	assert.ErrorIs(t, err, ErrCartConflict)
}

func TestCheckoutDeclinedDoesNotGrant(t *testing.T) {
	gateway := &fakeGateway{chargeResult: &payment.ChargeResult{
		Outcome:       payment.OutcomeDeclined,
		DeclineReason: payment.DeclineInsufficientFunds,
		Retryable:     false,
	}}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDeclined, result.Outcome)
	assert.Equal(t, payment.DeclineInsufficientFunds, result.DeclineReason)

	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestCheckoutExpressFallsBackWhenUnsupported(t *testing.T) {
	gateway := &fakeGateway{
		express: false,
		chargeResult: &payment.ChargeResult{
			Outcome:   payment.OutcomeSucceeded,
			Reference: "pi_success_2",
		},
	}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	_, err = f.svc.Checkout(context.Background(), userID, &CheckoutRequest{
		PaymentMethodToken: "pm_wallet",
		Express:            true,
	})
	require.NoError(t, err)
	require.NotNil(t, gateway.lastCharge)
	assert.False(t, gateway.lastCharge.Express)
}

func TestFinalizePaymentGrantsExactlyOnce(t *testing.T) {
	gateway := &fakeGateway{
		chargeResult: &payment.ChargeResult{
			Outcome:     payment.OutcomeRequiresAction,
			Reference:   "pi_3ds_1",
			RedirectURL: "https://bank.example/challenge",
		},
		finalizeResult: &payment.ChargeResult{
			Outcome:   payment.OutcomeSucceeded,
			Reference: "pi_3ds_1",
		},
	}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeRequiresAction, result.Outcome)
	assert.Equal(t, "https://bank.example/challenge", result.RedirectURL)

	// Nothing granted before the challenge completes.
	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	// Webhook delivery.
	final, err := f.svc.FinalizePayment(context.Background(), "pi_3ds_1")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSucceeded, final.Outcome)

	balance, err = f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 3+f.pkg.Credits, balance)

	// Duplicate delivery is a no-op.
	final, err = f.svc.FinalizePayment(context.Background(), "pi_3ds_1")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSucceeded, final.Outcome)
	assert.Equal(t, 1, gateway.finalizes)

	balance, err = f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 3+f.pkg.Credits, balance)
}

func TestDeclinedPaymentWebhookDoesNotLoop(t *testing.T) {
	gateway := &fakeGateway{chargeResult: &payment.ChargeResult{
		Outcome:       payment.OutcomeDeclined,
		Reference:     "pi_declined_1",
		DeclineReason: payment.DeclineCardDeclined,
	}}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDeclined, result.Outcome)

	// The declined reference must resolve to the order so the gateway's
	// failure event settles instead of redelivering forever.
	order, err := f.orders.GetByPaymentReference("pi_declined_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	final, err := f.svc.FinalizePayment(context.Background(), "pi_declined_1")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDeclined, final.Outcome)
	assert.Equal(t, 0, gateway.finalizes)

	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestFinalizePaymentUnknownReference(t *testing.T) {
	f := newCheckoutFixture(t, &fakeGateway{})

	_, err := f.svc.FinalizePayment(context.Background(), "pi_never_seen")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderLookupScopedToOwner(t *testing.T) {
	gateway := &fakeGateway{chargeResult: &payment.ChargeResult{
		Outcome:   payment.OutcomeSucceeded,
		Reference: "pi_success_3",
	}}
	f := newCheckoutFixture(t, gateway)
	userID := uuid.New()

	_, err := f.svc.EnsureCreditsInCart(userID, f.pkg.ID)
	require.NoError(t, err)

	result, err := f.svc.Checkout(context.Background(), userID, &CheckoutRequest{PaymentMethodToken: "pm_card"})
	require.NoError(t, err)

	order, err := f.svc.Order(userID, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, result.OrderNumber, order.OrderNumber)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)

	// Another user's id must not leak the order.
	_, err = f.svc.Order(uuid.New(), result.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.Order(userID, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
