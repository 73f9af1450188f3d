package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// LocalProvider stores images on the local filesystem.
type LocalProvider struct {
	basePath string
	maxSize  int64
}

// NewLocalProvider creates a new local file storage provider
func NewLocalProvider(basePath string, maxSize int64) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalProvider{
		basePath: basePath,
		maxSize:  maxSize,
	}, nil
}

func (p *LocalProvider) GetProviderName() string {
	return "local"
}

func (p *LocalProvider) Store(folder string, r io.Reader) (*StoredFile, error) {
	data, detected, err := readValidated(r, p.maxSize)
	if err != nil {
		return nil, err
	}

	folderPath := filepath.Join(p.basePath, folder)
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	name := opaqueName(detected)
	if err := os.WriteFile(filepath.Join(folderPath, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredFile{
		Name: name,
		MIME: detected,
		Size: int64(len(data)),
	}, nil
}

func (p *LocalProvider) Open(folder, name string) (io.ReadCloser, string, error) {
	// Reject anything that could escape the folder.
	if filepath.Base(name) != name {
		return nil, "", os.ErrNotExist
	}

	f, err := os.Open(filepath.Join(p.basePath, folder, name))
	if err != nil {
		return nil, "", err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		header := make([]byte, 512)
		n, _ := f.Read(header)
		mimeType = detectMIME(header[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, "", err
		}
	}
	return f, mimeType, nil
}

func (p *LocalProvider) Delete(folder, name string) error {
	if filepath.Base(name) != name {
		return os.ErrNotExist
	}
	return os.Remove(filepath.Join(p.basePath, folder, name))
}

func (p *LocalProvider) PurgeOlderThan(folder string, cutoff time.Time) (int, error) {
	folderPath := filepath.Join(p.basePath, folder)
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	purged := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(folderPath, entry.Name())); err == nil {
				purged++
			}
		}
	}
	return purged, nil
}

func detectMIME(header []byte) string {
	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8}):
		return "image/jpeg"
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case len(header) >= 12 && string(header[8:12]) == "WEBP":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
