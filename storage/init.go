package storage

import (
	"fmt"

	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/storage/mq"
	"PolicyWizard/storage/redis"
)

// Init 按配置初始化外部连接，未启用的组件直接跳过
func Init() error {
	cfg := config.Cfg

	if cfg.RedisEnabled {
		if err := redis.Init(); err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		logger.Logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.MQEnabled {
		if err := mq.Init(); err != nil {
			return fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
	}

	return nil
}
