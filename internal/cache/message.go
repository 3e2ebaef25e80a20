package cache

import (
	"context"
	"fmt"
	"time"

	"PolicyWizard/storage/redis"
)

const (
	messageProcessedPrefix = "mq:processed"

	processingTTL = 10 * time.Minute
	processedTTL  = 24 * time.Hour
)

// TryMarkMessageProcessing SETNX 标记消息正在处理，false 表示重复消息
func TryMarkMessageProcessing(ctx context.Context, messageID string) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)

	result, err := redis.Client().SetNX(ctx, key, "processing", processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return result, nil
}

// UnmarkMessageProcessing 处理失败时调用，允许重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	return redis.Client().Del(ctx, redis.Key(messageProcessedPrefix, messageID)).Err()
}

// MarkMessageProcessed 处理成功后延长 TTL
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	return redis.Client().Set(ctx, redis.Key(messageProcessedPrefix, messageID), "done", processedTTL).Err()
}
