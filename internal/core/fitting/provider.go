package fitting

import (
	"context"
	"fmt"

	"github.com/fitlook/virtual-tryon-be/internal/shared/config"
)

// GeneratedImage is the composite the provider returns.
type GeneratedImage struct {
	Data []byte
	MIME string
}

// Provider defines the interface for the external try-on generation API.
type Provider interface {
	// Generate composes the person photo with the garment reference image.
	// Transient failures (rate limit, 5xx) come back as a *ProviderError
	// with Transient=true so the caller can resubmit the same inputs.
	Generate(ctx context.Context, personImage, garmentImage []byte) (*GeneratedImage, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// ProviderError distinguishes transient provider failures from permanent
// ones. Only transient errors are worth retrying; retries resubmit the same
// two images and never re-validate or re-charge.
type ProviderError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fitting provider error %s: %s", e.Code, e.Message)
}

// NewProvider creates a fitting provider based on configuration
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.FittingProvider {
	case "fashn", "":
		if cfg.FashnAPIKey == "" {
			return nil, fmt.Errorf("FASHN_API_KEY is required for the fashn provider")
		}
		return NewFashnProvider(cfg.FashnAPIURL, cfg.FashnAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown fitting provider %q", cfg.FittingProvider)
	}
}
