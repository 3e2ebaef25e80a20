package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/csrf"
	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/response"
)

// CSRFMiddleware 依赖 SessionMiddleware，必须注册在其之后
func CSRFMiddleware() app.HandlerFunc {
	return csrf.New(
		csrf.WithSecret(config.Cfg.SessionSecret),
		csrf.WithKeyLookUp("header:X-CSRF-Token"),
		csrf.WithErrorFunc(func(ctx context.Context, c *app.RequestContext) {
			if err := c.Errors.Last(); err != nil {
				logger.Logger.Warn("CSRF check failed",
					zap.String("path", string(c.Path())),
					zap.Error(err.Err),
				)
			}
			response.Error(ctx, c, errors.Forbidden)
			c.Abort()
		}),
	)
}

// CSRFToken 当前会话的 CSRF token，未启用时为空
func CSRFToken(c *app.RequestContext) string {
	if !config.Cfg.CSRFEnabled {
		return ""
	}
	return csrf.GetToken(c)
}
