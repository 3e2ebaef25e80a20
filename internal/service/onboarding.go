package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"PolicyWizard/internal/cache"
	"PolicyWizard/internal/model"
	"PolicyWizard/internal/queue"
	"PolicyWizard/internal/wizard"
	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/metrics"
	"PolicyWizard/pkg/policyclient"
)

const (
	// 请求结束后仍需完成状态回写
	completeTimeout = 5 * time.Second
	publishTimeout  = 5 * time.Second

	defaultLockWait = 3 * time.Second
)

var (
	onboardingService *OnboardingService
	onboardingOnce    sync.Once
)

// InitOnboarding 在 cmd/server 中调用一次
func InitOnboarding(store cache.WizardStore, client policyclient.Client, publisher queue.Publisher, submitTimeout time.Duration, opts ...Option) *OnboardingService {
	onboardingOnce.Do(func() {
		onboardingService = NewOnboardingService(store, client, publisher, submitTimeout, opts...)
	})
	return onboardingService
}

func Onboarding() *OnboardingService {
	if onboardingService == nil {
		panic("onboarding service not initialized, call service.InitOnboarding() first")
	}
	return onboardingService
}

// OnboardingService 每个操作：加锁、读取会话状态、执行一次状态转换、写回
type OnboardingService struct {
	store         cache.WizardStore
	client        policyclient.Client
	publisher     queue.Publisher
	submitTimeout time.Duration
	lockWait      time.Duration
	now           func() time.Time
}

type Option func(*OnboardingService)

// WithLockWait 等待会话锁的上限，超时返回 SESSION_BUSY
func WithLockWait(d time.Duration) Option {
	return func(s *OnboardingService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func NewOnboardingService(store cache.WizardStore, client policyclient.Client, publisher queue.Publisher, submitTimeout time.Duration, opts ...Option) *OnboardingService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if submitTimeout <= 0 {
		submitTimeout = 15 * time.Second
	}
	svc := &OnboardingService{
		store:         store,
		client:        client,
		publisher:     publisher,
		submitTimeout: submitTimeout,
		lockWait:      defaultLockWait,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Get 返回会话当前状态，不存在时初始化到第一步
func (s *OnboardingService) Get(ctx context.Context, sessionID string) (*wizard.State, error) {
	return s.mutate(ctx, sessionID, func(*wizard.State) error { return nil })
}

func (s *OnboardingService) SubmitProduct(ctx context.Context, sessionID, product string) (*wizard.State, error) {
	return s.mutate(ctx, sessionID, func(state *wizard.State) error {
		return s.observeStep(ctx, state, wizard.StepSelectProduct, state.SubmitProduct(product))
	})
}

func (s *OnboardingService) SubmitPrincipal(ctx context.Context, sessionID string, details wizard.PrincipalDetails) (*wizard.State, error) {
	return s.mutate(ctx, sessionID, func(state *wizard.State) error {
		return s.observeStep(ctx, state, wizard.StepPrincipalDetails, state.SubmitPrincipal(details))
	})
}

func (s *OnboardingService) SubmitDependant(ctx context.Context, sessionID string, details wizard.DependantDetails) (*wizard.State, error) {
	return s.mutate(ctx, sessionID, func(state *wizard.State) error {
		return s.observeStep(ctx, state, wizard.StepDependantDetails, state.SubmitDependant(details))
	})
}

// Back 不校验，直接后退
func (s *OnboardingService) Back(ctx context.Context, sessionID string) (*wizard.State, error) {
	return s.mutate(ctx, sessionID, func(state *wizard.State) error {
		return state.Back()
	})
}

// Review 只在第四步可用
func (s *OnboardingService) Review(ctx context.Context, sessionID string) (*wizard.Summary, error) {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != wizard.StepReview {
		return nil, errors.StepMismatch
	}

	summary := state.Summary()
	return &summary, nil
}

// SubmitResult 投保结果；失败时 Err 为 SubmissionFailed 包装后的上游错误
type SubmitResult struct {
	State  *wizard.State
	Result *policyclient.Result
}

// Submit 锁只在状态转换时持有，上游请求期间其他请求能看到 IsLoading
func (s *OnboardingService) Submit(ctx context.Context, sessionID string) (*SubmitResult, error) {
	var submission wizard.PolicySubmission
	state, err := s.mutate(ctx, sessionID, func(state *wizard.State) error {
		var beginErr error
		submission, beginErr = state.BeginSubmission()
		return beginErr
	})
	if err != nil {
		return nil, err
	}
	submissionID := state.SubmissionID

	metrics.AddActiveSubmission(ctx, 1)
	started := s.now()

	callCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	result, callErr := s.client.CreatePolicy(callCtx, submission)
	cancel()

	metrics.AddActiveSubmission(ctx, -1)
	metrics.RecordSubmission(ctx, submission.ProductType, callErr == nil, s.now().Sub(started).Seconds())

	message := successMessage(result)
	if callErr != nil {
		message = failureMessage(callErr)
		logger.Logger.Warn("Policy submission failed",
			zap.String("session_id", sessionID),
			zap.String("product", submission.ProductType),
			zap.Error(callErr),
		)
	}

	state, err = s.complete(ctx, sessionID, submissionID, state, callErr, message)
	if err != nil {
		return nil, err
	}

	if callErr != nil {
		return &SubmitResult{State: state}, fmt.Errorf("%w: %w", errors.SubmissionFailed, callErr)
	}

	logger.Logger.Info("Policy submitted",
		zap.String("session_id", sessionID),
		zap.String("product", submission.ProductType),
		zap.Int("status", result.Status),
	)
	s.publishSubmitted(ctx, sessionID, submission, result)

	return &SubmitResult{State: state, Result: result}, nil
}

// complete 回写投保结果；会话已被重置（包括重置后又开始了新的向导）时不再写回
func (s *OnboardingService) complete(ctx context.Context, sessionID, submissionID string, fallback *wizard.State, callErr error, message string) (*wizard.State, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeTimeout)
	defer cancel()

	unlock, err := s.store.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.SessionBusy, err)
	}
	defer unlock()

	state, err := s.store.Load(ctx, sessionID)
	if err != nil && !stderrors.Is(err, cache.ErrSessionNotFound) {
		return nil, err
	}
	if err != nil || !state.AwaitingResult(submissionID) {
		logger.Logger.Info("Session reset during submission, result not stored",
			zap.String("session_id", sessionID),
		)
		fallback.CompleteSubmission(callErr, message)
		return fallback, nil
	}

	state.CompleteSubmission(callErr, message)
	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *OnboardingService) publishSubmitted(ctx context.Context, sessionID string, submission wizard.PolicySubmission, result *policyclient.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := model.PolicySubmittedMessage{
		SessionID:   sessionID,
		SubmittedAt: s.now().UTC().Format(time.RFC3339),
		Status:      result.Status,
		Submission:  submission,
	}
	if err := s.publisher.PublishPolicySubmitted(ctx, msg); err != nil {
		// 事件发布失败不影响投保结果
		metrics.RecordEventPublishFailed(ctx, "policy.submitted")
		logger.Logger.Error("Failed to publish policy submitted event",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// Reset 等同于刷新页面
func (s *OnboardingService) Reset(ctx context.Context, sessionID string) error {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.Delete(ctx, sessionID)
}

// mutate fn 返回错误时不写回，状态保持不变
func (s *OnboardingService) mutate(ctx context.Context, sessionID string, fn func(*wizard.State) error) (*wizard.State, error) {
	if sessionID == "" {
		return nil, errors.SessionMissing
	}

	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.store.Load(ctx, sessionID)
	switch {
	case stderrors.Is(err, cache.ErrSessionNotFound):
		state = wizard.NewState()
	case err != nil:
		return nil, err
	}

	if err := fn(state); err != nil {
		return state, translate(err)
	}

	if err := s.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// lock 只限制等锁时间，拿到锁后的读写仍使用调用方 ctx
func (s *OnboardingService) lock(ctx context.Context, sessionID string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.store.Lock(waitCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.SessionBusy, err)
	}
	return unlock, nil
}

func (s *OnboardingService) observeStep(ctx context.Context, state *wizard.State, step wizard.Step, err error) error {
	var verr *wizard.ValidationError
	switch {
	case err == nil:
		metrics.RecordStepCompleted(ctx, int(step), state.ProductType)
	case stderrors.As(err, &verr):
		metrics.RecordValidationFailed(ctx, int(step))
	}
	return err
}

// translate 状态机错误转为业务错误码，保留原始错误供 errors.As 使用
func translate(err error) error {
	var verr *wizard.ValidationError
	switch {
	case stderrors.As(err, &verr):
		return fmt.Errorf("%w: %w", errors.ValidationFailed, err)
	case stderrors.Is(err, wizard.ErrStepMismatch):
		return fmt.Errorf("%w: %w", errors.StepMismatch, err)
	case stderrors.Is(err, wizard.ErrSubmissionInFlight):
		return fmt.Errorf("%w: %w", errors.SubmissionInFlight, err)
	case stderrors.Is(err, wizard.ErrIncomplete):
		return fmt.Errorf("%w: %w", errors.WizardIncomplete, err)
	case stderrors.Is(err, wizard.ErrAlreadySubmitted):
		return fmt.Errorf("%w: %w", errors.AlreadySubmitted, err)
	default:
		return err
	}
}

func successMessage(result *policyclient.Result) string {
	if result != nil && len(result.Body) > 0 {
		return string(result.Body)
	}
	return "Policy created"
}

// failureMessage 上游非 2xx 时使用响应原文
func failureMessage(err error) string {
	var upstream *policyclient.UpstreamError
	if stderrors.As(err, &upstream) && upstream.Body != "" {
		return upstream.Body
	}
	return err.Error()
}
