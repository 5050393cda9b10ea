package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi_router/pkg/routing"
)

// blockingRouter waits for its context to end.
type blockingRouter struct{}

func (blockingRouter) Route(ctx context.Context, start, end routing.LatLng) (*routing.RouteResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type panickingRouter struct{}

func (panickingRouter) Route(ctx context.Context, start, end routing.LatLng) (*routing.RouteResult, error) {
	panic("boom")
}

func serve(t *testing.T, cfg ServerConfig, router routing.Router) *httptest.Server {
	t.Helper()
	srv := NewServer(cfg, testHandlers(router))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(validBody))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerRoutes(t *testing.T) {
	cfg := DefaultConfig(":0")
	cfg.CORSOrigin = "https://example.com"
	ts := serve(t, cfg, &mockRouter{result: testResult()})

	for _, path := range []string{"/api/v1/route", "/api/v1/route.geojson", "/api/v1/route.kml"} {
		resp := post(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	}

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/route")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerRequestTimeout(t *testing.T) {
	cfg := DefaultConfig(":0")
	cfg.RequestTimeout = 20 * time.Millisecond
	ts := serve(t, cfg, blockingRouter{})

	resp := post(t, ts.URL+"/api/v1/route")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerRecoversFromPanic(t *testing.T) {
	ts := serve(t, DefaultConfig(":0"), panickingRouter{})

	resp := post(t, ts.URL+"/api/v1/route")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServerConcurrencyLimit(t *testing.T) {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	handler := withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the limit is reached")
	}, sem, DefaultConfig(":0"))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
