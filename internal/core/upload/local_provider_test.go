package upload

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func newTestProvider(t *testing.T, maxSize int64) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(t.TempDir(), maxSize)
	require.NoError(t, err)
	return p
}

func TestStoreIssuesOpaqueName(t *testing.T) {
	p := newTestProvider(t, 1<<20)

	stored, err := p.Store(FolderPhotos, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", stored.MIME)
	assert.True(t, strings.HasSuffix(stored.Name, ".png"))
	assert.Equal(t, int64(len(pngBytes)), stored.Size)

	rc, mime, err := p.Open(FolderPhotos, stored.Name)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", mime)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
}

func TestStoreRejectsUnsupportedType(t *testing.T) {
	p := newTestProvider(t, 1<<20)

	_, err := p.Store(FolderPhotos, strings.NewReader("%PDF-1.4 not an image at all"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStoreRejectsEmptyUpload(t *testing.T) {
	p := newTestProvider(t, 1<<20)

	_, err := p.Store(FolderPhotos, bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestStoreRejectsOversizedUpload(t *testing.T) {
	p := newTestProvider(t, 16)

	_, err := p.Store(FolderPhotos, bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestOpenRejectsPathEscape(t *testing.T) {
	p := newTestProvider(t, 1<<20)

	_, _, err := p.Open(FolderPhotos, "../../etc/passwd")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	p := newTestProvider(t, 1<<20)

	stored, err := p.Store(FolderResults, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.NoError(t, p.Delete(FolderResults, stored.Name))

	_, _, err = p.Open(FolderResults, stored.Name)
	assert.Error(t, err)
}

func TestPurgeOlderThan(t *testing.T) {
	dir := t.TempDir()
	p, err := NewLocalProvider(dir, 1<<20)
	require.NoError(t, err)

	old, err := p.Store(FolderResults, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	fresh, err := p.Store(FolderResults, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	// Age the first file past the cutoff.
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, FolderResults, old.Name), stale, stale))

	purged, err := p.PurgeOlderThan(FolderResults, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, _, err = p.Open(FolderResults, old.Name)
	assert.Error(t, err)
	_, _, err = p.Open(FolderResults, fresh.Name)
	assert.NoError(t, err)
}
