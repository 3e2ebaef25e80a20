package handler

import (
	"context"
	stderrors "errors"

	"github.com/cloudwego/hertz/pkg/app"

	"PolicyWizard/internal/middleware"
	"PolicyWizard/internal/model"
	"PolicyWizard/internal/service"
	"PolicyWizard/internal/wizard"
	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/response"
)

func sessionID(c *app.RequestContext) (string, bool) {
	return middleware.GetWizardSessionID(c)
}

// writeError 校验失败时附带字段级错误信息
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	var verr *wizard.ValidationError
	if stderrors.As(err, &verr) {
		response.ErrorWithDetails(ctx, c, err, verr.Details())
		return
	}
	response.Error(ctx, c, err)
}

func writeView(ctx context.Context, c *app.RequestContext, state *wizard.State) {
	view := model.NewOnboardingView(state)
	if token := middleware.CSRFToken(c); token != "" {
		response.SuccessWithMeta(ctx, c, view, map[string]interface{}{"csrfToken": token})
		return
	}
	response.Success(ctx, c, view)
}

// GetOnboarding 获取当前向导状态与进度
// GET /v1/onboarding
func GetOnboarding(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	state, err := service.Onboarding().Get(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	writeView(ctx, c, state)
}

// SubmitProduct 第一步：选择产品
// POST /v1/onboarding/product
func SubmitProduct(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	var req model.ProductRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	state, err := service.Onboarding().SubmitProduct(ctx, id, req.Product)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	writeView(ctx, c, state)
}

// SubmitPrincipal 第二步：主被保人信息
// POST /v1/onboarding/principal
func SubmitPrincipal(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	var req model.PrincipalRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	state, err := service.Onboarding().SubmitPrincipal(ctx, id, req.Details())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	writeView(ctx, c, state)
}

// SubmitDependant 第三步：附属被保人信息
// POST /v1/onboarding/dependant
func SubmitDependant(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	var req model.DependantRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	state, err := service.Onboarding().SubmitDependant(ctx, id, req.Details())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	writeView(ctx, c, state)
}

// Back 后退一步
// POST /v1/onboarding/back
func Back(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	state, err := service.Onboarding().Back(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	writeView(ctx, c, state)
}

// Review 复核页数据
// GET /v1/onboarding/review
func Review(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	summary, err := service.Onboarding().Review(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	response.Success(ctx, c, summary)
}

// Submit 提交投保
// POST /v1/onboarding/submit
func Submit(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	res, err := service.Onboarding().Submit(ctx, id)
	if err != nil {
		if res != nil {
			response.ErrorWithDetails(ctx, c, err, map[string]interface{}{
				"message": res.State.Message,
				"state":   res.State,
			})
			return
		}
		writeError(ctx, c, err)
		return
	}

	data := model.SubmitResponse{
		State:   res.State,
		Success: true,
		Message: res.State.Message,
	}
	if res.Result != nil && len(res.Result.Body) > 0 {
		data.Policy = res.Result.Body
	}
	response.Success(ctx, c, data)
}

// Reset 清空向导状态
// DELETE /v1/onboarding
func Reset(ctx context.Context, c *app.RequestContext) {
	id, ok := sessionID(c)
	if !ok {
		response.Error(ctx, c, errors.SessionMissing)
		return
	}

	if err := service.Onboarding().Reset(ctx, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}
