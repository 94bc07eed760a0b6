package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/prodaja/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(model.PlatformZ, HTTPConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
}

func TestHTTPClientAccepted(t *testing.T) {
	var got listingRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "attempt-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted": true, "fee": "60.00", "message": "listed as 123"}`))
	})

	s := submission(model.PlatformZ, model.ConditionNew, "500", "440")
	s.Label = "New"
	out, err := c.Submit(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, out.Accepted)
	require.NotNil(t, out.Fee)
	assert.Equal(t, "60", out.Fee.String())
	assert.Equal(t, "listed as 123", out.Message)

	assert.Equal(t, model.PlatformZ, got.Platform)
	assert.Equal(t, "iPhone 12", got.ModelName)
	assert.Equal(t, "440", got.Price.String())
	assert.Equal(t, "New", got.ConditionLabel)
}

func TestHTTPClientRejected(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"error": "duplicate listing"}`))
		})

		out, err := c.Submit(context.Background(), submission(model.PlatformZ, model.ConditionNew, "500", "440"))
		require.NoError(t, err)
		assert.False(t, out.Accepted)
		assert.Equal(t, "duplicate listing", out.Message)
	}
}

func TestHTTPClientTransportFailure(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Submit(context.Background(), submission(model.PlatformZ, model.ConditionNew, "500", "440"))
	assert.ErrorIs(t, err, model.ErrTransportFailure)
	assert.Contains(t, err.Error(), "status 502")
}

func TestHTTPClientDeadline(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, submission(model.PlatformZ, model.ConditionNew, "500", "440"))
	assert.ErrorIs(t, err, model.ErrTransportFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
