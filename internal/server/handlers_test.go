package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobszpz/CarPark/internal/board"
	"github.com/jacobszpz/CarPark/internal/carpark"
	"github.com/jacobszpz/CarPark/internal/config"
	"github.com/jacobszpz/CarPark/internal/telemetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tel, err := telemetry.Init(context.Background(), "carpark-test", "http://localhost:4318", "test")
	require.NoError(t, err)

	carPark, err := carpark.NewInstrumented(15, 5, 5, tel)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:            "8080",
		Environment:     "test",
		OTelServiceName: "carpark-test",
	}

	return NewServer(cfg, tel, board.NewHub(), carPark)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getPath(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	w := getPath(srv.httpServer.Handler, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "carpark-test", body["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := getPath(srv.httpServer.Handler, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestEnterCarPark(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "KA01HH1234"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "KA01HH1234", data["registration"])
	assert.InDelta(t, 9, data["available"], 0.01)
}

func TestEnterCarParkFull(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	for i := 0; i < 5; i++ {
		w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: fmt.Sprintf("CAR%02d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "CAR05"})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Car park is full", resp.Error)
}

func TestEnterCarParkValidation(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/carpark/enter", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnterReservedAreaForbidden(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter-reserved", CarRequest{Registration: "KA01HH1234"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not subscribed")
}

func TestEnterReservedAreaSubscribed(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/subscribe", CarRequest{Registration: "KA01HH1234"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, "/api/carpark/enter-reserved", CarRequest{Registration: "KA01HH1234"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.InDelta(t, 10, data["available"], 0.01)
}

func TestSubscribeCap(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	for i := 0; i < 5; i++ {
		w := postJSON(t, h, "/api/carpark/subscribe", CarRequest{Registration: fmt.Sprintf("CAR%02d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := postJSON(t, h, "/api/carpark/subscribe", CarRequest{Registration: "CAR05"})

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "No subscription spaces left", resp.Error)
}

func TestLeaveCarPark(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "KA01HH1234"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, "/api/carpark/leave", CarRequest{Registration: "KA01HH1234"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.InDelta(t, 10, data["available"], 0.01)
}

func TestLeaveUnknownCarSucceeds(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/leave", CarRequest{Registration: "NEVERSEEN"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAndClose(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/subscribe", CarRequest{Registration: "KA01HH1234"})
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "KA01HH9999"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, "/api/carpark/open-reserved", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["reserved_open"])
	assert.InDelta(t, 14, data["available"], 0.01)

	w = postJSON(t, h, "/api/carpark/close", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp = decodeResponse(t, w)
	data = resp.Data.(map[string]any)
	assert.Equal(t, false, data["reserved_open"])
	assert.InDelta(t, 0, data["occupied"], 0.01)

	// Subscriptions survive the daily close.
	w = getPath(h, "/api/carpark/status")
	assert.Equal(t, http.StatusOK, w.Code)
	resp = decodeResponse(t, w)
	status := resp.Data.(map[string]any)
	subscribed := status["subscribed"].([]any)
	require.Len(t, subscribed, 1)
	assert.Equal(t, "KA01HH1234", subscribed[0])
}

func TestGetAvailability(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := getPath(h, "/api/carpark/availability")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	assert.InDelta(t, 10, data["available"], 0.01)
	assert.Equal(t, false, data["reserved_open"])
}

func TestGetStatus(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "KA01HH1234"})
	require.Equal(t, http.StatusOK, w.Code)

	w = getPath(h, "/api/carpark/status")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]any)
	assert.InDelta(t, 15, data["capacity"], 0.01)
	assert.InDelta(t, 5, data["reserved_capacity"], 0.01)

	parked := data["parked"].([]any)
	require.Len(t, parked, 1)
	assert.Equal(t, "KA01HH1234", parked[0])
}

func TestCreateCarPark(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/", CreateCarParkRequest{Capacity: 10, ReservedCapacity: 3, MinSpacesLeft: 2})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	// The replacement layout excludes its 3 reserved spaces from the figure.
	w = getPath(h, "/api/carpark/availability")
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.InDelta(t, 7, data["available"], 0.01)
}

func TestCreateCarParkInvalidLayout(t *testing.T) {
	srv := newTestServer(t)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/", CreateCarParkRequest{Capacity: 10, ReservedCapacity: 6, MinSpacesLeft: 5})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid car park layout")
}

func TestHandlersWithoutCarPark(t *testing.T) {
	tel, err := telemetry.Init(context.Background(), "carpark-test", "http://localhost:4318", "test")
	require.NoError(t, err)

	cfg := &config.Config{Port: "8080", OTelServiceName: "carpark-test"}
	srv := NewServer(cfg, tel, board.NewHub(), nil)
	h := srv.httpServer.Handler

	w := postJSON(t, h, "/api/carpark/enter", CarRequest{Registration: "KA01HH1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeResponse(t, w).Error, "not created")

	w = getPath(h, "/api/carpark/availability")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
