package payment

import (
	"context"

	"github.com/google/uuid"
)

// Charge outcomes
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeRequiresAction   = "requires_action"
	OutcomeDeclined         = "declined"
	OutcomeTransientFailure = "transient_failure"
)

// Gateway defines the interface for charging a payment method.
// Implementations map provider-specific failure codes onto the retryable /
// non-retryable split so callers can decide whether a resubmit makes sense.
type Gateway interface {
	// Charge attempts to capture the amount against the given payment
	// method token.
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)

	// Finalize resolves a charge that previously returned RequiresAction,
	// called from the return redirect or the provider webhook.
	Finalize(ctx context.Context, reference string) (*ChargeResult, error)

	// SupportsExpress reports whether wallet (payment-request) tokens can be
	// charged. Absence of the capability is a fallback, never an error.
	SupportsExpress() bool

	// Name returns the gateway provider name
	Name() string
}

// ChargeRequest describes a single charge attempt.
type ChargeRequest struct {
	OrderID            uuid.UUID `json:"order_id"`
	OrderNumber        string    `json:"order_number"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	PaymentMethodToken string    `json:"payment_method_token"`
	Express            bool      `json:"express"`
	CustomerName       string    `json:"customer_name"`
	CustomerEmail      string    `json:"customer_email"`
	ReturnURL          string    `json:"return_url"`
}

// ChargeResult is the normalized outcome of a charge attempt.
type ChargeResult struct {
	Outcome       string `json:"outcome"`
	Reference     string `json:"reference,omitempty"`      // provider charge/intent id
	RedirectURL   string `json:"redirect_url,omitempty"`   // set for requires_action
	DeclineReason string `json:"decline_reason,omitempty"` // set for declined
	Retryable     bool   `json:"retryable"`
	Message       string `json:"message,omitempty"`
}

// Provider decline codes the adapter recognizes.
const (
	DeclineCardDeclined      = "card_declined"
	DeclineInsufficientFunds = "insufficient_funds"
	DeclineExpiredCard       = "expired_card"
	DeclineIncorrectCVC      = "incorrect_cvc"
	DeclineInvalidNumber     = "invalid_number"
	DeclineProcessingError   = "processing_error"
	DeclineRateLimit         = "rate_limit"
)

// MapDeclineReason buckets a provider decline code. Non-retryable declines
// need the user to change payment method; retryable ones may be resubmitted
// with backoff.
func MapDeclineReason(code string) (reason string, retryable bool) {
	switch code {
	case DeclineCardDeclined, DeclineInsufficientFunds, DeclineExpiredCard,
		DeclineIncorrectCVC, DeclineInvalidNumber:
		return code, false
	case DeclineProcessingError, DeclineRateLimit:
		return code, true
	default:
		// Unknown codes are treated as a hard decline so we never loop on a
		// card the provider keeps refusing.
		return DeclineCardDeclined, false
	}
}
