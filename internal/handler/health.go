package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"PolicyWizard/storage/redis"
)

// Health 存活检查，启用 Redis 时同时检查连接
// GET /healthz
func Health(ctx context.Context, c *app.RequestContext) {
	status := map[string]string{"status": "ok"}

	if redis.Enabled() {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := redis.Client().Ping(pingCtx).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["redis"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}
