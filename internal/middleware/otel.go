package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const onboardingRoutePrefix = "/v1/onboarding"

var (
	httpServerRequestTotal   metric.Int64Counter
	httpServerDuration       metric.Float64Histogram
	httpServerActiveRequests metric.Int64UpDownCounter
)

// InitMetrics 注册 HTTP 指标，未调用时中间件只透传
func InitMetrics(meter metric.Meter) error {
	var err error

	httpServerRequestTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	httpServerDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		// 投保请求最长等待上游超时
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15),
	)
	if err != nil {
		return err
	}

	httpServerActiveRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	return err
}

// wizardAction 向导路由的动作名，例如 /v1/onboarding/principal -> principal
func wizardAction(route string) (string, bool) {
	if !strings.HasPrefix(route, onboardingRoutePrefix) {
		return "", false
	}
	action := strings.TrimPrefix(strings.TrimPrefix(route, onboardingRoutePrefix), "/")
	if action == "" {
		return "state", true
	}
	return action, true
}

// OpenTelemetryMiddleware 以路由模板而不是原始路径作为指标维度
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("policywizard/http")

	return func(ctx context.Context, c *app.RequestContext) {
		if httpServerActiveRequests == nil {
			c.Next(ctx)
			return
		}

		startTime := time.Now()
		method := string(c.Method())

		httpServerActiveRequests.Add(ctx, 1)
		defer httpServerActiveRequests.Add(ctx, -1)

		spanCtx, span := tracer.Start(ctx, method+" "+string(c.Path()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPMethod(method)),
		)
		defer span.End()

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}

		c.Next(spanCtx)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		statusCode := c.Response.StatusCode()

		span.SetName(method + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPStatusCode(statusCode))

		labels := []attribute.KeyValue{
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(statusCode),
		}
		if action, ok := wizardAction(route); ok {
			span.SetAttributes(attribute.String("wizard.action", action))
			labels = append(labels, attribute.String("wizard.action", action))
			if sessionID, ok := GetWizardSessionID(c); ok {
				span.SetAttributes(attribute.String("wizard.session_id", sessionID))
			}
		}

		if statusCode >= 500 {
			span.SetStatus(codes.Error, "HTTP server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		}

		httpServerRequestTotal.Add(ctx, 1, metric.WithAttributes(labels...))
		httpServerDuration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(labels...))
	}
}

// NewServerTracerConfig hertz server 的 tracer 选项与配套中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
