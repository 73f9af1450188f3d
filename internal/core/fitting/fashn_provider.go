package fitting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// FashnProvider talks to the FASHN try-on API: submit a run, poll its status
// until the composite is ready, then download the output image.
type FashnProvider struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

// NewFashnProvider creates a new FASHN try-on provider
func NewFashnProvider(baseURL, apiKey string) *FashnProvider {
	return &FashnProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollInterval: 2 * time.Second,
	}
}

func (p *FashnProvider) GetProviderName() string {
	return "fashn"
}

type fashnRunRequest struct {
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
	Category     string `json:"category"`
}

type fashnRunResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type fashnStatusResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"` // starting, in_queue, processing, completed, failed
	Output []string `json:"output,omitempty"`
	Error  *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *FashnProvider) Generate(ctx context.Context, personImage, garmentImage []byte) (*GeneratedImage, error) {
	runID, err := p.submit(ctx, personImage, garmentImage)
	if err != nil {
		return nil, err
	}

	log.Printf("🧥 Fitting run %s submitted", runID)

	for {
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Code: "timeout", Message: ctx.Err().Error(), Transient: true}
		case <-time.After(p.pollInterval):
		}

		status, err := p.status(ctx, runID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			if len(status.Output) == 0 {
				return nil, &ProviderError{Code: "empty_output", Message: "run completed without output"}
			}
			return p.download(ctx, status.Output[0])
		case "failed":
			code, message := "generation_failed", "generation failed"
			if status.Error != nil {
				code, message = status.Error.Name, status.Error.Message
			}
			// Pipeline errors on the provider side are worth one more run.
			transient := code == "PipelineError" || code == "InternalServerError"
			return nil, &ProviderError{Code: code, Message: message, Transient: transient}
		default:
			// starting, in_queue, processing: keep polling
		}
	}
}

func (p *FashnProvider) submit(ctx context.Context, personImage, garmentImage []byte) (string, error) {
	payload := fashnRunRequest{
		ModelImage:   dataURI(personImage),
		GarmentImage: dataURI(garmentImage),
		Category:     "auto",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/run", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Code: "network", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return "", err
	}

	var runResp fashnRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}
	if runResp.Error != "" {
		return "", &ProviderError{Code: "rejected", Message: runResp.Error}
	}
	if runResp.ID == "" {
		return "", &ProviderError{Code: "rejected", Message: "no run id returned"}
	}
	return runResp.ID, nil
}

func (p *FashnProvider) status(ctx context.Context, runID string) (*fashnStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/status/"+runID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Code: "network", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var status fashnStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

func (p *FashnProvider) download(ctx context.Context, outputURL string) (*GeneratedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Code: "network", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Code:      "download_failed",
			Message:   fmt.Sprintf("output download returned status %d", resp.StatusCode),
			Transient: resp.StatusCode >= 500,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Code: "network", Message: err.Error(), Transient: true}
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return &GeneratedImage{Data: data, MIME: mime}, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return &ProviderError{Code: "rate_limit", Message: "provider rate limit hit", Transient: true}
	case code >= 500:
		return &ProviderError{Code: "server_error", Message: fmt.Sprintf("provider returned status %d", code), Transient: true}
	default:
		return &ProviderError{Code: "rejected", Message: fmt.Sprintf("provider returned status %d", code)}
	}
}

func dataURI(image []byte) string {
	mime := http.DetectContentType(image[:min(len(image), 512)])
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
