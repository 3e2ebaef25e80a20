package queue

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/internal/cache"
	"PolicyWizard/internal/model"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/storage/mq"
	"PolicyWizard/storage/redis"
)

// Deduper 消息幂等标记
type Deduper interface {
	TryMark(ctx context.Context, messageID string) (bool, error)
	Done(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// RedisDeduper 基于 SETNX
type RedisDeduper struct{}

func (RedisDeduper) TryMark(ctx context.Context, messageID string) (bool, error) {
	return cache.TryMarkMessageProcessing(ctx, messageID)
}

func (RedisDeduper) Done(ctx context.Context, messageID string) error {
	return cache.MarkMessageProcessed(ctx, messageID)
}

func (RedisDeduper) Release(ctx context.Context, messageID string) error {
	return cache.UnmarkMessageProcessing(ctx, messageID)
}

// AuditSink 接收已去重的投保事件
type AuditSink func(ctx context.Context, msg model.PolicySubmittedMessage) error

// LogAuditSink 以结构化日志记录审计信息，不记录证件号与手机号
func LogAuditSink(ctx context.Context, msg model.PolicySubmittedMessage) error {
	fields := []zap.Field{
		zap.String("message_id", msg.MessageID),
		zap.String("session_id", msg.SessionID),
		zap.String("submitted_at", msg.SubmittedAt),
		zap.Int("upstream_status", msg.Status),
		zap.String("product", msg.Submission.ProductType),
		zap.Int("amount", msg.Submission.Amount),
	}
	if msg.Submission.Dependant != nil {
		fields = append(fields, zap.String("dependant_relationship", msg.Submission.Dependant.Relationship))
	}

	logger.Logger.Info("Policy submitted audit", fields...)
	return nil
}

// PolicySubmittedHandler 解析、去重并交给 sink
func PolicySubmittedHandler(deduper Deduper, sink AuditSink) mq.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var msg model.PolicySubmittedMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return &mq.SkipMessageError{Reason: fmt.Sprintf("malformed policy submitted message: %v", err)}
		}
		if msg.MessageID == "" {
			return &mq.SkipMessageError{Reason: "policy submitted message without message_id"}
		}

		if deduper != nil {
			first, err := deduper.TryMark(ctx, msg.MessageID)
			if err != nil {
				// 去重失败时继续处理，可能重复记录
				logger.Logger.Warn("Failed to check message processed status",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
			} else if !first {
				return &mq.SkipMessageError{Reason: fmt.Sprintf("message %s already processed", msg.MessageID)}
			}
		}

		if err := sink(ctx, msg); err != nil {
			if deduper != nil {
				_ = deduper.Release(ctx, msg.MessageID)
			}
			return fmt.Errorf("failed to record policy submission: %w", err)
		}

		if deduper != nil {
			if err := deduper.Done(ctx, msg.MessageID); err != nil {
				logger.Logger.Warn("Failed to mark message processed",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
			}
		}
		return nil
	}
}

// StartPolicyAuditConsumer 阻塞直到 ctx 结束
func StartPolicyAuditConsumer(ctx context.Context) error {
	cfg := config.Cfg

	var deduper Deduper
	if redis.Enabled() {
		deduper = RedisDeduper{}
	}

	return mq.Consume(ctx, mq.ConsumeOptions{
		Exchange:      cfg.PolicyExchange,
		RoutingKey:    cfg.PolicySubmittedRoutingKey,
		Queue:         cfg.PolicyAuditQueue,
		ConsumerTag:   "policy_audit_consumer",
		PrefetchCount: 10,
		Handler:       PolicySubmittedHandler(deduper, LogAuditSink),
	})
}
