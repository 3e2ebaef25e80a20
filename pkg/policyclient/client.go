package policyclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/internal/wizard"
	"PolicyWizard/pkg/logger"
)

// Client 投保接口客户端
type Client interface {
	// CreatePolicy 提交投保请求，不做重试
	CreatePolicy(ctx context.Context, submission wizard.PolicySubmission) (*Result, error)
}

var (
	policyClient Client
	policyOnce   sync.Once
	policyErr    error
)

// Init 根据 POLICY_PROVIDER 初始化客户端
func Init() error {
	policyOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.PolicyProvider {
		case "http":
			policyClient, policyErr = NewHTTPClient(cfg.PolicyEndpoint, time.Duration(cfg.PolicyTimeoutSeconds)*time.Second)
		case "mock":
			policyClient = NewMockClient()
		default:
			policyErr = fmt.Errorf("unsupported policy provider: %s", cfg.PolicyProvider)
		}

		if policyErr != nil {
			logger.Logger.Error("Failed to initialize policy client", zap.Error(policyErr))
			return
		}

		if cfg.BreakerMaxFailures > 0 {
			policyClient = NewBreakerClient(policyClient, cfg.BreakerMaxFailures, time.Duration(cfg.BreakerResetSeconds)*time.Second)
		}

		logger.Logger.Info("Policy client initialized successfully",
			zap.String("provider", cfg.PolicyProvider),
			zap.String("endpoint", cfg.PolicyEndpoint),
		)
	})

	return policyErr
}

func GetClient() Client {
	if policyClient == nil {
		panic("policy client not initialized, call policyclient.Init() first")
	}
	return policyClient
}
