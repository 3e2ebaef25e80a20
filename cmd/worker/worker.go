package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/internal/queue"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/storage"
)

// 消费投保成功事件，写入审计日志
func main() {
	logger.Init()
	defer logger.Sync()

	if !config.Cfg.MQEnabled {
		logger.Logger.Fatal("Worker requires MQ_ENABLED=true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
		zap.String("queue", config.Cfg.PolicyAuditQueue),
	)

	if err := queue.StartPolicyAuditConsumer(ctx); err != nil {
		logger.Logger.Error("Consumer exited with error", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
