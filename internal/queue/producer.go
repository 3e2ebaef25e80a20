package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/internal/model"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/snowflake"
	"PolicyWizard/storage/mq"
)

// Publisher 投保事件发布接口，便于在测试和未启用 MQ 时替换
type Publisher interface {
	PublishPolicySubmitted(ctx context.Context, msg model.PolicySubmittedMessage) error
}

// MQPublisher 通过 RabbitMQ 发布事件
type MQPublisher struct{}

// PublishPolicySubmitted 发布投保成功消息
func (MQPublisher) PublishPolicySubmitted(ctx context.Context, msg model.PolicySubmittedMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextID()
		if err != nil {
			logger.Logger.Error("Failed to generate message ID",
				zap.String("session_id", msg.SessionID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = fmt.Sprintf("policy_submitted_%d", id)
	}

	cfg := config.Cfg
	err := mq.PublishMessage(ctx, cfg.PolicyExchange, cfg.PolicySubmittedRoutingKey, msg.MessageID, msg)
	if err != nil {
		logger.Logger.Error("Failed to publish policy submitted message",
			zap.String("message_id", msg.MessageID),
			zap.String("session_id", msg.SessionID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published policy submitted message",
		zap.String("message_id", msg.MessageID),
		zap.String("session_id", msg.SessionID),
		zap.String("product", msg.Submission.ProductType),
	)

	return nil
}

// NopPublisher 未启用 MQ 时使用
type NopPublisher struct{}

func (NopPublisher) PublishPolicySubmitted(ctx context.Context, msg model.PolicySubmittedMessage) error {
	return nil
}
