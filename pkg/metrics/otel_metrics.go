package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 向导相关指标
	StepCompletedTotal    metric.Int64Counter
	ValidationFailedTotal metric.Int64Counter
	ActiveSubmissions     metric.Int64UpDownCounter

	// 投保请求相关指标
	SubmissionTotal    metric.Int64Counter
	SubmissionDuration metric.Float64Histogram
	EventPublishFailed metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标，未配置 MeterProvider 时为 noop
	meter = otel.Meter("policywizard")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	m := &OTelMetrics{}

	m.StepCompletedTotal, err = meter.Int64Counter(
		"wizard_step_completed_total",
		metric.WithDescription("Total number of wizard steps completed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return err
	}

	m.ValidationFailedTotal, err = meter.Int64Counter(
		"wizard_validation_failed_total",
		metric.WithDescription("Total number of rejected step submissions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	m.ActiveSubmissions, err = meter.Int64UpDownCounter(
		"policy_submissions_active",
		metric.WithDescription("Number of policy submissions in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.SubmissionTotal, err = meter.Int64Counter(
		"policy_submission_total",
		metric.WithDescription("Total number of policy submissions"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.SubmissionDuration, err = meter.Float64Histogram(
		"policy_submission_duration_seconds",
		metric.WithDescription("Time spent waiting for the policy endpoint in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.EventPublishFailed, err = meter.Int64Counter(
		"policy_event_publish_failed_total",
		metric.WithDescription("Total number of policy events that failed to publish"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，未初始化时返回 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordStepCompleted 记录步骤完成
func RecordStepCompleted(ctx context.Context, step int, product string) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.StepCompletedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("step", step),
		attribute.String("product", product),
	))
}

// RecordValidationFailed 记录步骤校验失败
func RecordValidationFailed(ctx context.Context, step int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.ValidationFailedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("step", step),
	))
}

// RecordSubmission 记录一次投保请求的结果与耗时
func RecordSubmission(ctx context.Context, product string, success bool, seconds float64) {
	m := GetMetrics()
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	m.SubmissionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("product", product),
		attribute.String("status", status),
	))
	m.SubmissionDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("product", product),
	))
}

func AddActiveSubmission(ctx context.Context, delta int64) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.ActiveSubmissions.Add(ctx, delta)
}

func RecordEventPublishFailed(ctx context.Context, routingKey string) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.EventPublishFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("routing_key", routingKey),
	))
}
