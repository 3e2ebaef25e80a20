package middleware

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newEngine() *route.Engine {
	return route.NewEngine(config.NewOptions([]config.Option{}))
}

func TestRecoverMiddleware(t *testing.T) {
	engine := newEngine()
	engine.Use(RecoverMiddlewareWithConfig(RecoverConfig{IsProduction: true}))
	engine.GET("/panic", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/panic", nil)
	resp := w.Result()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "INTERNAL_ERROR")
	assert.NotContains(t, string(resp.Body()), "boom")
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := newEngine()
	engine.Use(RequestIDMiddleware())
	engine.GET("/id", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/id", nil,
		ut.Header{Key: RequestIDHeader, Value: "req-123"})
	resp := w.Result()
	assert.Equal(t, "req-123", string(resp.Body()))
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))

	w = ut.PerformRequest(engine, http.MethodGet, "/id", nil)
	generated := string(w.Result().Body())
	assert.Len(t, generated, 36)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	engine := newEngine()
	engine.Use(CORSMiddleware())
	engine.OPTIONS("/v1/onboarding", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "unreachable")
	})

	w := ut.PerformRequest(engine, http.MethodOptions, "/v1/onboarding", nil,
		ut.Header{Key: "Origin", Value: "http://localhost:3000"})
	resp := w.Result()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRequestIDMiddleware_ReplacesUnusableHeader(t *testing.T) {
	engine := newEngine()
	engine.Use(RequestIDMiddleware())
	engine.GET("/id", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	for _, header := range []string{"a\xffbc", "has space", strings.Repeat("x", 65)} {
		w := ut.PerformRequest(engine, http.MethodGet, "/id", nil,
			ut.Header{Key: RequestIDHeader, Value: header})
		got := string(w.Result().Body())
		assert.NotEqual(t, header, got)
		assert.Len(t, got, 36)
	}
}

func TestWizardAction(t *testing.T) {
	tests := []struct {
		route  string
		want   string
		wizard bool
	}{
		{route: "/v1/onboarding", want: "state", wizard: true},
		{route: "/v1/onboarding/principal", want: "principal", wizard: true},
		{route: "/v1/onboarding/submit", want: "submit", wizard: true},
		{route: "/v1/auth/login"},
		{route: "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			got, ok := wizardAction(tt.route)
			assert.Equal(t, tt.wizard, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenTelemetryMiddleware_PassesThrough(t *testing.T) {
	require.NoError(t, InitMetrics(noop.NewMeterProvider().Meter("test")))
	t.Cleanup(func() {
		httpServerRequestTotal = nil
		httpServerDuration = nil
		httpServerActiveRequests = nil
	})

	engine := newEngine()
	engine.Use(OpenTelemetryMiddleware())
	engine.POST("/v1/onboarding/product", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, c.FullPath())
	})

	w := ut.PerformRequest(engine, http.MethodPost, "/v1/onboarding/product", nil)
	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "/v1/onboarding/product", string(resp.Body()))
}
