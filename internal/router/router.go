package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"PolicyWizard/config"
	"PolicyWizard/internal/handler"
	"PolicyWizard/internal/middleware"
	"PolicyWizard/storage/redis"
)

func Register(h *server.Hertz) {
	cfg := config.Cfg

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	h.GET("/healthz", handler.Health)

	v1 := h.Group("/v1")
	v1.Use(middleware.SessionMiddleware())
	if cfg.CSRFEnabled {
		v1.Use(middleware.CSRFMiddleware()) // 依赖 session
	}

	// 限流依赖 Redis
	rateLimited := cfg.RateLimitEnabled && redis.Enabled()

	// 认证相关路由
	auth := v1.Group("/auth")
	if rateLimited {
		auth.Use(middleware.AuthRateLimitMiddleware())
	}
	{
		auth.POST("/login", handler.Login)
		auth.POST("/logout", handler.Logout)
		auth.GET("/me", middleware.AuthMiddleware(), handler.Me)
	}

	// 投保向导路由
	onboarding := v1.Group("/onboarding")
	onboarding.Use(middleware.WizardSessionMiddleware())
	if rateLimited {
		onboarding.Use(middleware.GeneralRateLimitMiddleware())
	}
	{
		onboarding.GET("", handler.GetOnboarding)
		onboarding.DELETE("", handler.Reset)
		onboarding.POST("/product", handler.SubmitProduct)
		onboarding.POST("/principal", handler.SubmitPrincipal)
		onboarding.POST("/dependant", handler.SubmitDependant)
		onboarding.POST("/back", handler.Back)
		onboarding.GET("/review", handler.Review)
		onboarding.POST("/submit", handler.Submit)
	}
}
