package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/core/catalog"
	"github.com/fitlook/virtual-tryon-be/internal/core/fitting"
	"github.com/fitlook/virtual-tryon-be/internal/core/upload"
	"github.com/fitlook/virtual-tryon-be/internal/models"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/google/uuid"
)

var (
	ErrInsufficientCredits = repositories.ErrInsufficientCredits
	ErrPhotoNotFound       = errors.New("uploaded photo not found")
	ErrPhotoRejected       = errors.New("photo rejected by screening")
	ErrProviderFailed      = errors.New("fitting generation failed")
	ErrProductNotEligible  = errors.New("product is not available for virtual fitting")
)

// FittingService drives the pipeline: validated photo plus one product
// reference image go to the provider; the credit is deducted strictly after
// the provider reports success, so a failed generation never charges.
type FittingService struct {
	storage       upload.Provider
	provider      fitting.Provider
	screener      *fitting.Screener
	catalog       catalog.Client
	creditService *CreditService
	activityRepo  repositories.ActivityRepo

	timeout           time.Duration
	maxRetries        int
	retryDelay        time.Duration
	allowedCategories []string
}

func NewFittingService(
	storage upload.Provider,
	provider fitting.Provider,
	screener *fitting.Screener,
	catalogClient catalog.Client,
	creditService *CreditService,
	activityRepo repositories.ActivityRepo,
	timeout time.Duration,
	maxRetries int,
	allowedCategories []string,
) *FittingService {
	return &FittingService{
		storage:           storage,
		provider:          provider,
		screener:          screener,
		catalog:           catalogClient,
		creditService:     creditService,
		activityRepo:      activityRepo,
		timeout:           timeout,
		maxRetries:        maxRetries,
		retryDelay:        2 * time.Second,
		allowedCategories: allowedCategories,
	}
}

// FittingRequest identifies the inputs of one generation attempt.
type FittingRequest struct {
	PhotoName string    `json:"photo_name"`
	ProductID uuid.UUID `json:"product_id"`
	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
}

// FittingResult points at the stored composite image.
type FittingResult struct {
	ResultName string `json:"result_name"`
	MIME       string `json:"mime"`
	Balance    int    `json:"balance"`
}

// RequestFitting runs one try-on generation for the user.
func (s *FittingService) RequestFitting(ctx context.Context, userID uuid.UUID, req *FittingRequest) (*FittingResult, error) {
	started := time.Now()

	// First genuine use provisions the free-credit grant.
	account, err := s.creditService.EnsureAccount(userID)
	if err != nil {
		return nil, err
	}

	// Fail fast before spending provider budget. The deduct after success
	// remains the authoritative check.
	if account.CreditsRemaining < 1 {
		s.logFitting(userID, req, models.ActivityStatusError, "insufficient credits", started)
		return nil, ErrInsufficientCredits
	}

	photo, err := s.loadPhoto(req.PhotoName)
	if err != nil {
		s.logFitting(userID, req, models.ActivityStatusError, "photo not found", started)
		return nil, ErrPhotoNotFound
	}

	if s.screener != nil {
		reason, err := s.screener.Check(ctx, photo)
		if err != nil {
			// Screening is advisory; a screening outage must not block paying
			// customers.
			log.Printf("⚠️ Photo screening unavailable: %v", err)
		} else if reason != "" {
			s.logFitting(userID, req, models.ActivityStatusError, "photo rejected: "+reason, started)
			return nil, fmt.Errorf("%w: %s", ErrPhotoRejected, reason)
		}
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID.String())
	if err != nil {
		s.logFitting(userID, req, models.ActivityStatusError, err.Error(), started)
		return nil, err
	}
	if !s.productEligible(product) {
		s.logFitting(userID, req, models.ActivityStatusError, "product not eligible", started)
		return nil, ErrProductNotEligible
	}
	garment, err := s.catalog.FetchImage(ctx, product.ImageURL)
	if err != nil {
		s.logFitting(userID, req, models.ActivityStatusError, err.Error(), started)
		return nil, err
	}

	generated, err := s.generateWithRetries(ctx, photo, garment)
	if err != nil {
		// No charge on failure: the ledger is untouched.
		s.logFitting(userID, req, models.ActivityStatusError, err.Error(), started)
		return nil, err
	}

	stored, err := s.storage.Store(upload.FolderResults, bytes.NewReader(generated.Data))
	if err != nil {
		s.logFitting(userID, req, models.ActivityStatusError, err.Error(), started)
		return nil, fmt.Errorf("failed to store result: %w", err)
	}

	// Deduct after confirmed success. Losing the race against a concurrent
	// request means this result is discarded and the user is not charged.
	if err := s.creditService.Deduct(userID); err != nil {
		if derr := s.storage.Delete(upload.FolderResults, stored.Name); derr != nil {
			log.Printf("⚠️ Failed to discard uncharged result %s: %v", stored.Name, derr)
		}
		s.logFitting(userID, req, models.ActivityStatusError, "insufficient credits", started)
		return nil, err
	}

	balance, _ := s.creditService.Balance(userID)
	s.logFitting(userID, req, models.ActivityStatusSuccess, "", started)
	log.Printf("✅ Fitting completed for %s in %s (balance %d)", userID, time.Since(started).Round(time.Millisecond), balance)

	return &FittingResult{
		ResultName: stored.Name,
		MIME:       stored.MIME,
		Balance:    balance,
	}, nil
}

// StorePhoto validates and persists an uploaded photo.
func (s *FittingService) StorePhoto(r io.Reader) (*upload.StoredFile, error) {
	return s.storage.Store(upload.FolderPhotos, r)
}

// OpenResult returns a stored composite for download.
func (s *FittingService) OpenResult(name string) (io.ReadCloser, string, error) {
	return s.storage.Open(upload.FolderResults, name)
}

// generateWithRetries resubmits the same two images on transient provider
// failures, with the delay stretching from 2s to 3s between attempts.
func (s *FittingService) generateWithRetries(ctx context.Context, photo, garment []byte) (*fitting.GeneratedImage, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay + time.Duration(attempt-1)*time.Second
			log.Printf("🔁 Retrying fitting generation (attempt %d/%d) after %s", attempt, s.maxRetries, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		generated, err := s.provider.Generate(attemptCtx, photo, garment)
		cancel()
		if err == nil {
			return generated, nil
		}
		lastErr = err

		var provErr *fitting.ProviderError
		if !errors.As(err, &provErr) || !provErr.Transient {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrProviderFailed, lastErr)
}

// productEligible checks the category allow-list. An empty list means every
// product can be tried on.
func (s *FittingService) productEligible(product *catalog.Product) bool {
	if len(s.allowedCategories) == 0 {
		return true
	}
	for _, allowed := range s.allowedCategories {
		for _, category := range product.Categories {
			if category == allowed {
				return true
			}
		}
	}
	return false
}

func (s *FittingService) loadPhoto(name string) ([]byte, error) {
	rc, _, err := s.storage.Open(upload.FolderPhotos, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *FittingService) logFitting(userID uuid.UUID, req *FittingRequest, status, errMsg string, started time.Time) {
	processingMs := time.Since(started).Milliseconds()
	productID := req.ProductID
	entry := &models.ActivityLog{
		UserID:       userID,
		Action:       models.ActivityVirtualFitting,
		Status:       status,
		ProductID:    &productID,
		ProcessingMs: &processingMs,
		ErrorMessage: errMsg,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}
	if err := s.activityRepo.Create(entry); err != nil {
		log.Printf("⚠️ Failed to write activity log: %v", err)
	}
}
