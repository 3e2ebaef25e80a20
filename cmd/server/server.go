package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/internal/cache"
	"PolicyWizard/internal/middleware"
	"PolicyWizard/internal/queue"
	"PolicyWizard/internal/router"
	"PolicyWizard/internal/service"
	"PolicyWizard/pkg/identity"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/metrics"
	"PolicyWizard/pkg/otel"
	"PolicyWizard/pkg/policyclient"
	"PolicyWizard/pkg/snowflake"
	"PolicyWizard/pkg/token"
	"PolicyWizard/storage"
)

func main() {
	// 日志部分
	logger.Init()
	defer logger.Sync()

	cfg := config.Cfg
	if err := cfg.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
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

	// OpenTelemetry 需在存储层之前初始化，Redis hook 使用全局 provider
	if cfg.OTelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.FromConfig(&cfg))
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
			}
		}()
	}

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	} // token 在中间件前初始化，middleware 依赖 token

	if err := policyclient.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize policy client", zap.Error(err))
	}
	if err := identity.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize identity client", zap.Error(err))
	}

	ttl := time.Duration(cfg.WizardTTLMinutes) * time.Minute
	var store cache.WizardStore = cache.NewMemoryWizardStore(ttl)
	if cfg.WizardStore == "redis" {
		store = cache.NewRedisWizardStore(ttl)
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.MQEnabled {
		publisher = queue.MQPublisher{}
	}

	service.InitOnboarding(store, policyclient.GetClient(), publisher,
		time.Duration(cfg.PolicyTimeoutSeconds)*time.Second,
		service.WithLockWait(time.Duration(cfg.SessionLockWaitMs)*time.Millisecond),
	)
	service.InitAuth(identity.GetClient())

	// 初始化中间件
	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServerPort),
		zap.String("environment", cfg.Environment),
		zap.String("wizard_store", cfg.WizardStore),
	)

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	h := newServer(cfg.OTelEnabled, addr)

	router.Register(h)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}

// newServer 启用 OTel 时挂载 hertz 的服务端 tracer
// serverOptions 客户端断开时取消请求 ctx，进行中的投保请求随之中止
func serverOptions(addr string) []hertzconfig.Option {
	return []hertzconfig.Option{
		server.WithHostPorts(addr),
		server.WithSenseClientDisconnection(true),
	}
}

func newServer(tracing bool, addr string) *server.Hertz {
	opts := serverOptions(addr)
	if !tracing {
		return server.Default(opts...)
	}

	tracerOpt, tracingMiddleware := middleware.NewServerTracerConfig()
	h := server.Default(append(opts, tracerOpt)...)
	h.Use(tracingMiddleware)
	return h
}
