package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeGateway charges cards and wallet tokens through the Stripe
// PaymentIntents API. Strong customer authentication surfaces as a
// requires_action outcome carrying the bank redirect URL; the flow resumes
// through Finalize once the customer returns.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripeGateway creates a new Stripe payment gateway
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com/v1",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

// SupportsExpress is true: payment-request wallet tokens charge through the
// same intent path as manual card entry.
func (g *StripeGateway) SupportsExpress() bool {
	return true
}

type stripeIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	NextAction *struct {
		RedirectToURL struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LastPaymentError *stripeError `json:"last_payment_error"`
}

type stripeError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

type stripeErrorEnvelope struct {
	Error stripeError `json:"error"`
}

// Charge creates and confirms a payment intent in one call.
func (g *StripeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(req.Amount*100+0.5), 10))
	form.Set("currency", req.Currency)
	form.Set("payment_method", req.PaymentMethodToken)
	form.Set("confirm", "true")
	form.Set("return_url", req.ReturnURL)
	form.Set("description", fmt.Sprintf("Credit package order %s", req.OrderNumber))
	form.Set("metadata[order_id]", req.OrderID.String())
	form.Set("metadata[order_number]", req.OrderNumber)
	if req.CustomerEmail != "" {
		form.Set("receipt_email", req.CustomerEmail)
	}

	status, body, err := g.post(ctx, "/payment_intents", form)
	if err != nil {
		// Network failure or timeout: the caller may retry with backoff.
		log.Printf("⚠️ Stripe request failed: %v", err)
		return &ChargeResult{
			Outcome:   OutcomeTransientFailure,
			Retryable: true,
			Message:   "payment provider unreachable",
		}, nil
	}

	return g.interpret(status, body)
}

// Finalize re-reads an intent after a redirect-based challenge or webhook.
func (g *StripeGateway) Finalize(ctx context.Context, reference string) (*ChargeResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/payment_intents/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.secretKey, "")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return &ChargeResult{
			Outcome:   OutcomeTransientFailure,
			Retryable: true,
			Message:   "payment provider unreachable",
		}, nil
	}
	defer resp.Body.Close()

	var intent stripeIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ChargeResult{
			Outcome:   OutcomeTransientFailure,
			Retryable: true,
			Message:   fmt.Sprintf("stripe returned status %d", resp.StatusCode),
		}, nil
	}

	return intentResult(&intent), nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	httpReq.SetBasicAuth(g.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (g *StripeGateway) interpret(status int, body []byte) (*ChargeResult, error) {
	switch {
	case status == http.StatusOK:
		var intent stripeIntent
		if err := json.Unmarshal(body, &intent); err != nil {
			return nil, fmt.Errorf("failed to decode intent: %w", err)
		}
		return intentResult(&intent), nil

	case status == http.StatusPaymentRequired, status == http.StatusBadRequest:
		var envelope stripeErrorEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode error: %w", err)
		}
		code := envelope.Error.DeclineCode
		if code == "" {
			code = envelope.Error.Code
		}
		reason, retryable := MapDeclineReason(code)
		log.Printf("💳 Charge declined: %s (retryable=%v)", reason, retryable)
		return &ChargeResult{
			Outcome:       OutcomeDeclined,
			DeclineReason: reason,
			Retryable:     retryable,
			Message:       envelope.Error.Message,
		}, nil

	case status == http.StatusTooManyRequests || status >= 500:
		return &ChargeResult{
			Outcome:   OutcomeTransientFailure,
			Retryable: true,
			Message:   fmt.Sprintf("stripe returned status %d", status),
		}, nil

	default:
		return nil, fmt.Errorf("stripe returned unexpected status %d", status)
	}
}

func intentResult(intent *stripeIntent) *ChargeResult {
	switch intent.Status {
	case "succeeded":
		return &ChargeResult{
			Outcome:   OutcomeSucceeded,
			Reference: intent.ID,
		}
	case "requires_action":
		redirect := ""
		if intent.NextAction != nil {
			redirect = intent.NextAction.RedirectToURL.URL
		}
		return &ChargeResult{
			Outcome:     OutcomeRequiresAction,
			Reference:   intent.ID,
			RedirectURL: redirect,
			Message:     "additional authentication required",
		}
	case "processing":
		return &ChargeResult{
			Outcome:   OutcomeTransientFailure,
			Reference: intent.ID,
			Retryable: true,
			Message:   "payment still processing",
		}
	default:
		code := ""
		message := "payment was not completed"
		if intent.LastPaymentError != nil {
			code = intent.LastPaymentError.DeclineCode
			if code == "" {
				code = intent.LastPaymentError.Code
			}
			message = intent.LastPaymentError.Message
		}
		reason, retryable := MapDeclineReason(code)
		return &ChargeResult{
			Outcome:       OutcomeDeclined,
			Reference:     intent.ID,
			DeclineReason: reason,
			Retryable:     retryable,
			Message:       message,
		}
	}
}
