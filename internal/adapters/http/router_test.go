package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Haleralex/corsserve/internal/adapters/http/handlers"
	"github.com/Haleralex/corsserve/internal/adapters/http/middleware"
	"github.com/Haleralex/corsserve/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================
// Test Helpers
// ============================================

func assertDevHeaders(t *testing.T, h http.Header) {
	t.Helper()

	assert.Equal(t, []string{"*"}, h.Values("Access-Control-Allow-Origin"))
	assert.Equal(t, []string{"*"}, h.Values("Access-Control-Allow-Methods"))
	assert.Equal(t, []string{"*"}, h.Values("Access-Control-Allow-Headers"))
	assert.Equal(t, []string{"no-store, no-cache, must-revalidate"}, h.Values("Cache-Control"))
}

func newTestSite(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "styles.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "points.json"), []byte(`[1,2,3]`), 0o644))
	return root
}

func newTestRouterConfig(t *testing.T) *RouterConfig {
	t.Helper()

	cfg := config.Test()
	cfg.Static.Root = newTestSite(t)

	return &RouterConfig{
		Logger: slog.New(slog.DiscardHandler),
		Config: cfg,
	}
}

// requestsTotal суммирует corsserve_http_requests_total по всем меткам.
func requestsTotal(t *testing.T, g prometheus.Gatherer) float64 {
	t.Helper()

	families, err := g.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "corsserve_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func doRequest(router http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

// ============================================
// Builder
// ============================================

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	assert.NotNil(t, cfg.Logger)
	require.NotNil(t, cfg.Config)
	assert.Equal(t, ".", cfg.Config.Static.Root)
	assert.Nil(t, cfg.Metrics)
	assert.Nil(t, cfg.TracerProvider)
}

func TestNewRouterBuilder_NilConfig(t *testing.T) {
	builder := NewRouterBuilder(nil)

	require.NotNil(t, builder)
	assert.NotNil(t, builder.config.Logger)
	assert.NotNil(t, builder.config.Config)
}

func TestNewRouterBuilder_FillsMissingFields(t *testing.T) {
	builder := NewRouterBuilder(&RouterConfig{})

	assert.NotNil(t, builder.config.Logger)
	assert.Equal(t, config.Development(), builder.config.Config)
}

func TestRouterBuilder_Metrics(t *testing.T) {
	rc := newTestRouterConfig(t)
	builder := NewRouterBuilder(rc)
	assert.Nil(t, builder.Metrics())

	builder.Build()
	assert.NotNil(t, builder.Metrics())

	shared := middleware.NewMetrics("shared")
	rc.Metrics = shared
	builder = NewRouterBuilder(rc)
	builder.Build()
	assert.Same(t, shared, builder.Metrics())
}

// ============================================
// Static Files
// ============================================

func TestRouter_ServesFiles(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	tests := []struct {
		path        string
		body        string
		contentType string
	}{
		{"/", "<h1>home</h1>", "text/html"},
		{"/styles.css", "body{}", "text/css"},
		{"/data/points.json", "[1,2,3]", "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.path)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
			assertDevHeaders(t, w.Result().Header)
		})
	}
}

func TestRouter_RootListing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "map.js"), []byte("init()"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tiles"), 0o755))

	rc := newTestRouterConfig(t)
	rc.Config.Static.Root = root
	router := NewRouter(rc)

	t.Run("GET", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), `<a href="map.js">map.js</a>`)
		assert.Contains(t, w.Body.String(), `<a href="tiles/">tiles/</a>`)
		assertDevHeaders(t, w.Result().Header)
	})

	t.Run("HEAD", func(t *testing.T) {
		w := doRequest(router, http.MethodHead, "/")

		assert.Equal(t, http.StatusOK, w.Code)
		assertDevHeaders(t, w.Result().Header)
	})

	t.Run("Subdirectory", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/tiles/")

		assert.Equal(t, http.StatusOK, w.Code)
		assertDevHeaders(t, w.Result().Header)
	})
}

func TestRouter_RootListingLoggedAsSuccess(t *testing.T) {
	var buf bytes.Buffer
	rc := newTestRouterConfig(t)
	require.NoError(t, os.Remove(filepath.Join(rc.Config.Static.Root, "index.html")))
	rc.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	router := NewRouter(rc)

	doRequest(router, http.MethodGet, "/")

	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRouter_NotFoundCarriesHeaders(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	w := doRequest(router, http.MethodGet, "/nope.png")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assertDevHeaders(t, w.Result().Header)
}

func TestRouter_DirectoryRedirectCarriesHeaders(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	w := doRequest(router, http.MethodGet, "/data")

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "data/", w.Header().Get("Location"))
	assertDevHeaders(t, w.Result().Header)
}

func TestRouter_HeadRequest(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	w := doRequest(router, http.MethodHead, "/styles.css")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assertDevHeaders(t, w.Result().Header)
}

func TestRouter_UnsupportedMethodCarriesHeaders(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	for _, method := range []string{http.MethodOptions, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			w := doRequest(router, method, "/styles.css")

			assert.Equal(t, http.StatusNotImplemented, w.Code)
			assertDevHeaders(t, w.Result().Header)
		})
	}
}

func TestRouter_RequestID(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	w := doRequest(router, http.MethodGet, "/")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "client-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-id", w.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_CustomHeaders(t *testing.T) {
	rc := newTestRouterConfig(t)
	rc.Config.Headers.AllowOrigin = "http://localhost:5173"
	rc.Config.Headers.CacheControl = "no-cache"
	router := NewRouter(rc)

	w := doRequest(router, http.MethodGet, "/")

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}

func TestRouter_WithStaticHandler(t *testing.T) {
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "other.txt"), []byte("other"), 0o644))

	router := NewRouterBuilder(newTestRouterConfig(t)).
		WithStaticHandler(handlers.NewStaticHandler(other)).
		Build()

	w := doRequest(router, http.MethodGet, "/other.txt")
	assert.Equal(t, "other", w.Body.String())

	w = doRequest(router, http.MethodGet, "/styles.css")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	rc := newTestRouterConfig(t)
	rc.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	router := NewRouter(rc)

	doRequest(router, http.MethodGet, "/styles.css")

	assert.Contains(t, buf.String(), `"path":"/styles.css"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

// ============================================
// Admin Endpoints
// ============================================

func TestRouter_AdminDisabledServesFiles(t *testing.T) {
	rc := newTestRouterConfig(t)
	adminDir := filepath.Join(rc.Config.Static.Root, "_corsserve")
	require.NoError(t, os.MkdirAll(adminDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(adminDir, "health"), []byte("a file"), 0o644))
	router := NewRouter(rc)

	w := doRequest(router, http.MethodGet, "/_corsserve/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a file", w.Body.String())

	w = doRequest(router, http.MethodGet, "/_corsserve/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminEnabled(t *testing.T) {
	rc := newTestRouterConfig(t)
	rc.Config.Admin.Enabled = true
	builder := NewRouterBuilder(rc)
	router := builder.Build()

	t.Run("Health", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/_corsserve/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assertDevHeaders(t, w.Result().Header)
	})

	t.Run("Ready", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/_corsserve/ready")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ready":true`)
	})

	t.Run("Metrics", func(t *testing.T) {
		doRequest(router, http.MethodGet, "/styles.css")
		doRequest(router, http.MethodGet, "/missing")

		w := doRequest(router, http.MethodGet, "/_corsserve/metrics")

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `corsserve_http_requests_total{method="GET",status="200"} 1`)
		assert.Contains(t, body, `corsserve_http_requests_total{method="GET",status="404"} 1`)
		assert.False(t, strings.Contains(body, "/_corsserve"))
	})

	t.Run("AdminRequestsNotCounted", func(t *testing.T) {
		before := requestsTotal(t, builder.Metrics().Registry())
		doRequest(router, http.MethodGet, "/_corsserve/health")
		doRequest(router, http.MethodGet, "/_corsserve/ready")
		after := requestsTotal(t, builder.Metrics().Registry())

		assert.Equal(t, float64(2), before)
		assert.Equal(t, before, after)
	})

	t.Run("OtherPathsStillServed", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/data/points.json")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// ============================================
// Tracing
// ============================================

func TestRouter_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rc := newTestRouterConfig(t)
	rc.TracerProvider = tp
	router := NewRouter(rc)

	w := doRequest(router, http.MethodGet, "/styles.css")
	require.Equal(t, http.StatusOK, w.Code)
	assertDevHeaders(t, w.Result().Header)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.True(t, spans[0].SpanContext().IsValid())
}

func TestRouter_NoTracingByDefault(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	w := doRequest(router, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
}
