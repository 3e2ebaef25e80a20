package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"PolicyWizard/pkg/logger"
	"PolicyWizard/storage/mq"
	"PolicyWizard/storage/redis"
)

// Close 优雅关闭所有存储连接
// 关闭顺序：MQ -> Redis，先停止发布事件，再关闭会话存储
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := mq.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close message queue", zap.Error(err))
	} else {
		logger.Logger.Info("Message queue closed successfully")
	}

	if err := redis.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
	} else {
		logger.Logger.Info("Redis connection closed successfully")
	}

	logger.Logger.Info("All storage connections closed")
}
