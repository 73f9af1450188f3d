package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/core/catalog"
	"github.com/fitlook/virtual-tryon-be/internal/core/fitting"
	"github.com/fitlook/virtual-tryon-be/internal/core/upload"
	"github.com/fitlook/virtual-tryon-be/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage keeps stored files in a map, keyed folder/name.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	n     int
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (s *memStorage) Store(folder string, r io.Reader) (*upload.StoredFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	name := fmt.Sprintf("file-%d.jpg", s.n)
	s.files[folder+"/"+name] = data
	return &upload.StoredFile{Name: name, MIME: "image/jpeg", Size: int64(len(data))}, nil
}

func (s *memStorage) Open(folder, name string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[folder+"/"+name]
	if !ok {
		return nil, "", fmt.Errorf("not found: %s/%s", folder, name)
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (s *memStorage) Delete(folder, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, folder+"/"+name)
	return nil
}

func (s *memStorage) PurgeOlderThan(folder string, cutoff time.Time) (int, error) {
	return 0, nil
}

func (s *memStorage) GetProviderName() string { return "memory" }

// fakeFittingProvider fails with the scripted errors before succeeding.
type fakeFittingProvider struct {
	errs     []error
	attempts int
}

func (p *fakeFittingProvider) Generate(ctx context.Context, personImage, garmentImage []byte) (*fitting.GeneratedImage, error) {
	p.attempts++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &fitting.GeneratedImage{Data: []byte("composite"), MIME: "image/jpeg"}, nil
}

func (p *fakeFittingProvider) GetProviderName() string { return "fake" }

type fakeCatalog struct {
	categories []string
}

func (c *fakeCatalog) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	return &catalog.Product{
		ID:         productID,
		Name:       "Linen Shirt",
		ImageURL:   "https://shop.example/img/linen.jpg",
		Categories: c.categories,
	}, nil
}

func (c *fakeCatalog) FetchImage(ctx context.Context, url string) ([]byte, error) {
	return []byte("garment"), nil
}

type fittingFixture struct {
	svc      *FittingService
	credits  *CreditService
	storage  *memStorage
	provider *fakeFittingProvider
}

func newFittingFixture(t *testing.T, freeCredits int, provider *fakeFittingProvider) *fittingFixture {
	t.Helper()
	db := testDB(t)

	storage := newMemStorage()
	creditService := NewCreditService(repositories.NewCreditRepo(db), freeCredits)

	svc := NewFittingService(
		storage, provider, nil, &fakeCatalog{},
		creditService, repositories.NewActivityRepo(db),
		5*time.Second, 2, nil,
	)
	svc.retryDelay = time.Millisecond

	return &fittingFixture{svc: svc, credits: creditService, storage: storage, provider: provider}
}

func uploadPhoto(t *testing.T, f *fittingFixture) string {
	t.Helper()
	stored, err := f.storage.Store(upload.FolderPhotos, bytes.NewReader([]byte("person")))
	require.NoError(t, err)
	return stored.Name
}

func TestRequestFittingDeductsOnSuccess(t *testing.T) {
	f := newFittingFixture(t, 3, &fakeFittingProvider{})
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	result, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ResultName)
	assert.Equal(t, 2, result.Balance)

	// The composite must be downloadable.
	rc, mime, err := f.svc.OpenResult(result.ResultName)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/jpeg", mime)
}

func TestRequestFittingNoChargeOnProviderFailure(t *testing.T) {
	provider := &fakeFittingProvider{errs: []error{
		&fitting.ProviderError{Code: "rejected", Message: "pose not detected", Transient: false},
	}}
	f := newFittingFixture(t, 3, provider)
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	_, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.ErrorIs(t, err, ErrProviderFailed)

	// Permanent failures are not retried.
	assert.Equal(t, 1, provider.attempts)

	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

func TestRequestFittingRetriesTransientFailures(t *testing.T) {
	provider := &fakeFittingProvider{errs: []error{
		&fitting.ProviderError{Code: "rate_limit", Message: "slow down", Transient: true},
		&fitting.ProviderError{Code: "server_error", Message: "upstream 502", Transient: true},
	}}
	f := newFittingFixture(t, 3, provider)
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	result, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, provider.attempts)
	assert.Equal(t, 2, result.Balance)
}

func TestRequestFittingRetriesExhausted(t *testing.T) {
	provider := &fakeFittingProvider{errs: []error{
		&fitting.ProviderError{Code: "server_error", Message: "upstream 502", Transient: true},
		&fitting.ProviderError{Code: "server_error", Message: "upstream 502", Transient: true},
		&fitting.ProviderError{Code: "server_error", Message: "upstream 502", Transient: true},
	}}
	f := newFittingFixture(t, 3, provider)
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	_, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, 3, provider.attempts)

	balance, err := f.credits.Balance(userID)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

func TestRequestFittingInsufficientCredits(t *testing.T) {
	provider := &fakeFittingProvider{}
	f := newFittingFixture(t, 0, provider)
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	_, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.ErrorIs(t, err, ErrInsufficientCredits)

	// Nothing was sent to the provider.
	assert.Equal(t, 0, provider.attempts)
}

func TestRequestFittingMissingPhoto(t *testing.T) {
	f := newFittingFixture(t, 3, &fakeFittingProvider{})

	_, err := f.svc.RequestFitting(context.Background(), uuid.New(), &FittingRequest{
		PhotoName: "does-not-exist.jpg",
		ProductID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestRequestFittingCategoryAllowList(t *testing.T) {
	provider := &fakeFittingProvider{}
	f := newFittingFixture(t, 3, provider)
	f.svc.allowedCategories = []string{"tops", "dresses"}

	catalogClient := &fakeCatalog{categories: []string{"accessories"}}
	f.svc.catalog = catalogClient
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	_, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.ErrorIs(t, err, ErrProductNotEligible)
	assert.Equal(t, 0, provider.attempts)

	// A product in an allowed category goes through.
	catalogClient.categories = []string{"tops"}
	result, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Balance)
}

func TestRequestFittingLastCreditRace(t *testing.T) {
	f := newFittingFixture(t, 1, &fakeFittingProvider{})
	userID := uuid.New()
	photo := uploadPhoto(t, f)

	result, err := f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Balance)

	// Balance is spent; the next request fails before reaching the provider.
	_, err = f.svc.RequestFitting(context.Background(), userID, &FittingRequest{
		PhotoName: photo,
		ProductID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}
