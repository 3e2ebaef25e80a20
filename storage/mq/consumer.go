package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"PolicyWizard/pkg/logger"
)

var tracer = otel.Tracer("policywizard/mq")

type MessageHandler func(ctx context.Context, body []byte) error

// SkipMessageError 消息无需处理，直接确认不再重投
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

type ConsumeOptions struct {
	Exchange      string
	RoutingKey    string
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 声明并绑定队列后阻塞消费，ctx 结束时返回
func Consume(ctx context.Context, opts ConsumeOptions) error {
	conn := Connection()
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", opts.Queue, err)
	}
	if err := ch.QueueBind(opts.Queue, opts.RoutingKey, opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", opts.Queue, err)
	}

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", opts.Queue)
			}

			dispatch(ctx, opts, msg)
		}
	}
}

// dispatch 从消息头恢复发布方的 trace context 后调用 handler 并确认消息
func dispatch(ctx context.Context, opts ConsumeOptions, msg amqp.Delivery) {
	if msg.Headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, HeaderCarrier(msg.Headers))
	}
	ctx, span := tracer.Start(ctx, "consume "+opts.Queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", opts.Queue),
			attribute.String("messaging.message.id", msg.MessageId),
		),
	)
	defer span.End()

	err := opts.Handler(ctx, msg.Body)
	var skip *SkipMessageError
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case errors.As(err, &skip):
		logger.Logger.Info("Skipping message",
			zap.String("queue", opts.Queue),
			zap.String("reason", skip.Reason),
		)
		_ = msg.Ack(false)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Logger.Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("consumer_tag", opts.ConsumerTag),
			zap.Error(err),
		)
		// 已重投过一次的消息不再重回队列
		_ = msg.Nack(false, !msg.Redelivered)
	}
}
