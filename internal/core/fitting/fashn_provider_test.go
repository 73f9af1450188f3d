package fitting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fashnTestProvider(handler http.Handler) (*FashnProvider, *httptest.Server) {
	server := httptest.NewServer(handler)
	provider := NewFashnProvider(server.URL, "fa_test_key")
	provider.pollInterval = time.Millisecond
	return provider, server
}

func TestGenerateSubmitPollDownload(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()

	var serverURL string
	mux.HandleFunc("POST /v1/run", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fa_test_key", r.Header.Get("Authorization"))

		var run fashnRunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&run))
		assert.True(t, strings.HasPrefix(run.ModelImage, "data:"))
		assert.True(t, strings.HasPrefix(run.GarmentImage, "data:"))

		json.NewEncoder(w).Encode(fashnRunResponse{ID: "run_1"})
	})
	mux.HandleFunc("GET /v1/status/run_1", func(w http.ResponseWriter, r *http.Request) {
		// Two processing polls before the run completes.
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(fashnStatusResponse{ID: "run_1", Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(fashnStatusResponse{
			ID:     "run_1",
			Status: "completed",
			Output: []string{serverURL + "/output/run_1.jpg"},
		})
	})
	mux.HandleFunc("GET /output/run_1.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("composite-bytes"))
	})

	provider, server := fashnTestProvider(mux)
	defer server.Close()
	serverURL = server.URL

	generated, err := provider.Generate(context.Background(), []byte("person"), []byte("garment"))
	require.NoError(t, err)
	assert.Equal(t, []byte("composite-bytes"), generated.Data)
	assert.Equal(t, "image/jpeg", generated.MIME)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestGenerateRateLimitIsTransient(t *testing.T) {
	provider, server := fashnTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := provider.Generate(context.Background(), []byte("person"), []byte("garment"))
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "rate_limit", provErr.Code)
	assert.True(t, provErr.Transient)
}

func TestGenerateRejectedIsPermanent(t *testing.T) {
	provider, server := fashnTestProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := provider.Generate(context.Background(), []byte("person"), []byte("garment"))
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.False(t, provErr.Transient)
}

func TestGenerateFailedRunMapsPipelineErrorTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/run", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fashnRunResponse{ID: "run_2"})
	})
	mux.HandleFunc("GET /v1/status/run_2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "run_2", "status": "failed", "error": {"name": "PipelineError", "message": "worker crashed"}}`)
	})

	provider, server := fashnTestProvider(mux)
	defer server.Close()

	_, err := provider.Generate(context.Background(), []byte("person"), []byte("garment"))
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "PipelineError", provErr.Code)
	assert.True(t, provErr.Transient)
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/run", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fashnRunResponse{ID: "run_3"})
	})
	mux.HandleFunc("GET /v1/status/run_3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fashnStatusResponse{ID: "run_3", Status: "processing"})
	})

	provider, server := fashnTestProvider(mux)
	defer server.Close()
	provider.pollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := provider.Generate(ctx, []byte("person"), []byte("garment"))
	require.Error(t, err)
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		assert.True(t, provErr.Transient)
	}
}
