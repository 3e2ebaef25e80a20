package middleware

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sessions"
	"github.com/hertz-contrib/sessions/cookie"
	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/response"
	"PolicyWizard/pkg/snowflake"
)

// WizardSessionKey 向导会话 ID 在 session 与请求上下文中的键
const WizardSessionKey = "wizard_session_id"

// SessionMiddleware 签名 cookie 保存会话，只存放向导会话 ID
func SessionMiddleware() app.HandlerFunc {
	cfg := config.Cfg

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAgeSeconds,
		Secure:   cfg.IsProduction(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return sessions.New(cfg.SessionCookieName, store)
}

// WizardSessionMiddleware 首次访问时分配 snowflake 会话 ID
func WizardSessionMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		session := sessions.Default(c)

		id, _ := session.Get(WizardSessionKey).(string)
		if id == "" {
			var err error
			id, err = snowflake.NextIDString()
			if err != nil {
				logger.Logger.Error("Failed to generate wizard session ID", zap.Error(err))
				response.Error(ctx, c, errors.InternalError)
				c.Abort()
				return
			}

			session.Set(WizardSessionKey, id)
			if err := session.Save(); err != nil {
				logger.Logger.Error("Failed to save session", zap.Error(err))
				response.Error(ctx, c, errors.InternalError)
				c.Abort()
				return
			}
		}

		c.Set(WizardSessionKey, id)
		c.Next(ctx)
	}
}

// GetWizardSessionID 获取当前请求的向导会话 ID
func GetWizardSessionID(c *app.RequestContext) (string, bool) {
	id := c.GetString(WizardSessionKey)
	return id, id != ""
}
