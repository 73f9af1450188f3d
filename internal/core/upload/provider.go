package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fitlook/virtual-tryon-be/internal/shared/config"
	"github.com/google/uuid"
)

// Validation failures carry a specific reason so handlers can report wrong
// type vs. too large vs. empty distinctly.
var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("file exceeds maximum size")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
)

// Folders used by the fitting flow.
const (
	FolderPhotos  = "photos"
	FolderResults = "results"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// StoredFile describes a stored object. Name is opaque and server-issued;
// files are never addressable by a caller-chosen path.
type StoredFile struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
}

// Provider abstracts where photos and fitting results live.
type Provider interface {
	// Store validates and persists one image under an opaque generated name.
	Store(folder string, r io.Reader) (*StoredFile, error)

	// Open returns the stored content for download.
	Open(folder, name string) (io.ReadCloser, string, error)

	Delete(folder, name string) error

	// PurgeOlderThan removes files written before the cutoff, returning how
	// many were deleted.
	PurgeOlderThan(folder string, cutoff time.Time) (int, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// NewProvider creates a storage provider based on configuration
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.UploadProvider {
	case "s3":
		return NewS3Provider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSRegion, cfg.S3Bucket, cfg.MaxUploadSize)
	case "local", "":
		return NewLocalProvider(cfg.UploadDir, cfg.MaxUploadSize)
	default:
		return nil, fmt.Errorf("unknown upload provider %q", cfg.UploadProvider)
	}
}

// readValidated sniffs the content type, enforces the allow-list and the max
// size, and returns the image bytes with their detected MIME type.
func readValidated(r io.Reader, maxSize int64) ([]byte, string, error) {
	limited := io.LimitReader(r, maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyUpload
	}
	if int64(len(data)) > maxSize {
		return nil, "", ErrTooLarge
	}

	mime := http.DetectContentType(data[:min(len(data), 512)])
	if _, ok := allowedImageTypes[mime]; !ok {
		return nil, "", ErrUnsupportedType
	}
	return data, mime, nil
}

// opaqueName issues an unguessable filename with the extension matching the
// detected type.
func opaqueName(mime string) string {
	return uuid.New().String() + allowedImageTypes[mime]
}
