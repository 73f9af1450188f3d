package payment

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ManualGateway approves every charge immediately. Used in development and
// for stores that settle payments out of band.
type ManualGateway struct{}

// NewManualGateway creates a new manual payment gateway
func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

func (g *ManualGateway) Name() string {
	return "manual"
}

// SupportsExpress is false: without a card processor there is no wallet
// capability, callers fall back to the manual path.
func (g *ManualGateway) SupportsExpress() bool {
	return false
}

func (g *ManualGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	reference := fmt.Sprintf("manual_%d_%s", time.Now().Unix(), uuid.New().String()[:8])
	log.Printf("💳 Manual gateway approved order %s (ref %s)", req.OrderNumber, reference)
	return &ChargeResult{
		Outcome:   OutcomeSucceeded,
		Reference: reference,
		Message:   "payment recorded manually",
	}, nil
}

func (g *ManualGateway) Finalize(ctx context.Context, reference string) (*ChargeResult, error) {
	return &ChargeResult{
		Outcome:   OutcomeSucceeded,
		Reference: reference,
	}, nil
}
