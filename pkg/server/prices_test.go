package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattwise/controller/pkg/tariff"
)

func TestHandlePricesRefresh_Success(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{points: []tariff.RawPoint{
		{ValidFrom: now, ValidTo: now.Add(30 * time.Minute), UnitPrice: 12.5},
		{ValidFrom: now.Add(30 * time.Minute), ValidTo: now.Add(time.Hour), UnitPrice: 8.0},
	}}
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, fetcher)

	req := httptest.NewRequest(http.MethodPost, "/prices/refresh", nil)
	w := httptest.NewRecorder()
	srv.handlePricesRefresh(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"pricesStored":2`)
}

func TestHandlePricesRefresh_NoFetcherConfigured(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/prices/refresh", nil)
	w := httptest.NewRecorder()
	srv.handlePricesRefresh(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}

func TestHandlePricesRefresh_FetchFails(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{err: errors.New("upstream down")})

	req := httptest.NewRequest(http.MethodPost, "/prices/refresh", nil)
	w := httptest.NewRecorder()
	srv.handlePricesRefresh(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode)
}

func TestHandlePricesCurrent_DefaultHours(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/prices/current", nil)
	w := httptest.NewRecorder()
	srv.handlePricesCurrent(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestHandlePricesCurrent_InvalidHours(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/prices/current?hours=-5", nil)
	w := httptest.NewRecorder()
	srv.handlePricesCurrent(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
