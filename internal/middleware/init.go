package middleware

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"PolicyWizard/pkg/logger"
)

// Init 初始化所有中间件，需在 token.Init 之后调用
func Init() error {
	if err := initAuthMiddleware(); err != nil {
		logger.Logger.Error("Failed to initialize auth middleware", zap.Error(err))
		return err
	}

	// 未启用 OTel 时全局 MeterProvider 为 noop
	if err := InitMetrics(otel.Meter("policywizard.http")); err != nil {
		logger.Logger.Error("Failed to initialize http metrics", zap.Error(err))
		return err
	}

	logger.Logger.Info("All middlewares initialized successfully")
	return nil
}
