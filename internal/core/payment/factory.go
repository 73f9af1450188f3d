package payment

import (
	"fmt"
	"log"

	"github.com/fitlook/virtual-tryon-be/internal/shared/config"
)

// NewGateway creates a payment gateway based on configuration
func NewGateway(cfg *config.Config) (Gateway, error) {
	switch cfg.PaymentMode {
	case "manual":
		log.Println("💳 Using Manual Payment Gateway")
		return NewManualGateway(), nil

	case "stripe":
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required for stripe payment mode")
		}
		log.Println("💳 Using Stripe Payment Gateway")
		return NewStripeGateway(cfg.StripeSecretKey), nil

	default:
		log.Printf("⚠️ Unknown payment mode '%s', defaulting to manual", cfg.PaymentMode)
		return NewManualGateway(), nil
	}
}
