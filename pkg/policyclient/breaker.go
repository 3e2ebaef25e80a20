package policyclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"PolicyWizard/internal/wizard"
	"PolicyWizard/pkg/logger"
)

// ErrCircuitOpen 熔断期间直接拒绝，不访问上游
var ErrCircuitOpen = errors.New("policy endpoint circuit breaker is open")

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常工作
	StateOpen                  // 熔断中
	StateHalfOpen              // 放行一个探测请求
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerClient 为 Client 加上熔断保护
type BreakerClient struct {
	next         Client
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	lastFailTime time.Time
	probing      bool
}

func NewBreakerClient(next Client, maxFailures int, resetTimeout time.Duration) *BreakerClient {
	return &BreakerClient{
		next:         next,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

func (b *BreakerClient) CreatePolicy(ctx context.Context, submission wizard.PolicySubmission) (*Result, error) {
	if !b.allowRequest() {
		return nil, ErrCircuitOpen
	}

	result, err := b.next.CreatePolicy(ctx, submission)
	b.recordResult(err)
	return result, err
}

func (b *BreakerClient) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailTime) < b.resetTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

func (b *BreakerClient) recordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if err == nil {
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		b.failures = 0
		return
	}
	// 取消或 4xx 不能说明上游已恢复，半开状态下等待下一次探测
	if !countsAsFailure(err) {
		return
	}

	b.failures++
	b.lastFailTime = b.now()

	logger.Logger.Warn("Policy endpoint call failed",
		zap.Int("failures", b.failures),
		zap.String("state", b.state.String()),
		zap.Error(err),
	)

	switch b.state {
	case StateClosed:
		if b.failures >= b.maxFailures {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// countsAsFailure 4xx 与调用方主动取消不计入熔断
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Status < 500 {
		return false
	}
	return true
}

func (b *BreakerClient) transition(to State) {
	if to == StateClosed {
		b.failures = 0
	}
	b.state = to

	logger.Logger.Info("Policy circuit breaker transitioned",
		zap.String("state", to.String()),
		zap.Duration("reset_timeout", b.resetTimeout),
	)
}

// GetState 获取当前状态
func (b *BreakerClient) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
