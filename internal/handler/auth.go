package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol"

	"PolicyWizard/config"
	"PolicyWizard/internal/middleware"
	"PolicyWizard/internal/model"
	"PolicyWizard/internal/service"
	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/response"
)

// Login 登录并把 token 写入 cookie
// POST /v1/auth/login
func Login(ctx context.Context, c *app.RequestContext) {
	var req model.LoginRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Auth().Login(ctx, req.Email, req.Password)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	cfg := config.Cfg
	maxAge := cfg.AuthCookieDays * 24 * 60 * 60
	c.SetCookie(cfg.AuthCookieName, result.Token, maxAge, "/", "",
		protocol.CookieSameSiteLaxMode, cfg.IsProduction(), true)

	response.Success(ctx, c, model.LoginResponse{
		Authenticated: true,
		Role:          result.Role,
		ExpiresAt:     time.Now().Add(time.Duration(maxAge) * time.Second).UTC().Format(time.RFC3339),
	})
}

// Logout 清除登录 cookie
// POST /v1/auth/logout
func Logout(ctx context.Context, c *app.RequestContext) {
	c.SetCookie(config.Cfg.AuthCookieName, "", -1, "/", "",
		protocol.CookieSameSiteLaxMode, config.Cfg.IsProduction(), true)
	response.NoContent(ctx, c)
}

// Me 当前登录角色
// GET /v1/auth/me
func Me(ctx context.Context, c *app.RequestContext) {
	role, ok := middleware.GetRole(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return
	}
	response.Success(ctx, c, model.MeResponse{Role: role})
}
