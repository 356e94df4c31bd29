package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattwise/controller/pkg/types"
)

func TestHandleManualOverrideSet_Success(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	body := `{"deviceId":"main","desiredState":true,"durationHours":3}`
	req := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader(body))
	w := httptest.NewRecorder()

	srv.handleManualOverrideSet(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"deviceId":"main"`)
}

func TestHandleManualOverrideSet_UnknownDevice(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	body := `{"deviceId":"garage","desiredState":true}`
	req := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader(body))
	w := httptest.NewRecorder()

	srv.handleManualOverrideSet(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandleManualOverrideSet_DurationTooLong(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	body := `{"deviceId":"main","desiredState":true,"durationHours":48}`
	req := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader(body))
	w := httptest.NewRecorder()

	srv.handleManualOverrideSet(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandleManualOverrideSet_MalformedBody(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	srv.handleManualOverrideSet(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandleManualOverrideStatus_ReportsAnyActive(t *testing.T) {
	store := newFakeProvider()
	srv := newTestServer(store, &fakeAdapter{}, &fakeFetcher{})

	setBody := `{"deviceId":"lucy","desiredState":true,"durationHours":1}`
	setReq := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader(setBody))
	setW := httptest.NewRecorder()
	srv.handleManualOverrideSet(setW, setReq)
	require.Equal(t, http.StatusOK, setW.Result().StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/manual-override/status", nil)
	w := httptest.NewRecorder()
	srv.handleManualOverrideStatus(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"anyActive":true`)
	assert.Contains(t, w.Body.String(), `"main":{"isActive":false`)
}

func TestHandleManualOverrideClear_Idempotent(t *testing.T) {
	srv := newTestServer(newFakeProvider(), &fakeAdapter{}, &fakeFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/manual-override/clear?device_id="+string(types.DeviceMain), nil)
	w := httptest.NewRecorder()
	srv.handleManualOverrideClear(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"cleared":0`)
}

func TestHandleManualOverrideClearAll(t *testing.T) {
	store := newFakeProvider()
	srv := newTestServer(store, &fakeAdapter{}, &fakeFetcher{})

	for _, body := range []string{
		`{"deviceId":"main","desiredState":true,"durationHours":1}`,
		`{"deviceId":"lucy","desiredState":true,"durationHours":1}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/manual-override/set", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.handleManualOverrideSet(w, req)
		require.Equal(t, http.StatusOK, w.Result().StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/manual-override/clear-all?cleared_by=test", nil)
	w := httptest.NewRecorder()
	srv.handleManualOverrideClearAll(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"cleared":2`)
}
