package tariff

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_ParsesWirePoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"valid_from":"2026-01-01T00:00:00Z","valid_to":"2026-01-01T00:30:00Z","unit_price":12.5},
			{"valid_from":"2026-01-01T00:30:00Z","valid_to":"2026-01-01T01:00:00Z","unit_price":-1.0}
		]`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{URL: srv.URL, Timeout: 2 * time.Second})
	points, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 12.5, points[0].UnitPrice)
	assert.Equal(t, -1.0, points[1].UnitPrice)
}

func TestHTTPFetcher_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"valid_from":"2026-01-01T00:00:00Z","valid_to":"2026-01-01T00:30:00Z","unit_price":5}]`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{URL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 3, BaseDelay: time.Millisecond})
	points, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestHTTPFetcher_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{URL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2, BaseDelay: time.Millisecond})
	_, err := f.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPFetcher_NoURLConfigured(t *testing.T) {
	f := NewHTTPFetcher(HTTPFetcherConfig{Timeout: time.Second})
	_, err := f.Fetch(context.Background())
	assert.Error(t, err)
}
