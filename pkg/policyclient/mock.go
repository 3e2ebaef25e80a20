package policyclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"PolicyWizard/internal/wizard"
)

// MockClient 可配置的投保客户端 mock，实现 Client 接口
type MockClient struct {
	mu    sync.Mutex
	Calls []wizard.PolicySubmission

	// FailNext 置为 true 时，下一次调用返回 mock 错误并自动复位
	FailNext bool
	// Block 非空时调用会等待该 channel 关闭，用于模拟请求进行中
	Block chan struct{}
}

func NewMockClient() *MockClient {
	return &MockClient{
		Calls: make([]wizard.PolicySubmission, 0),
	}
}

func (m *MockClient) CreatePolicy(ctx context.Context, submission wizard.PolicySubmission) (*Result, error) {
	m.mu.Lock()
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, submission)

	if m.FailNext {
		m.FailNext = false
		return nil, &UpstreamError{Status: 500, Body: "mock policy failure"}
	}

	body, err := json.Marshal(map[string]interface{}{
		"policyId":    fmt.Sprintf("mock-policy-%d", len(m.Calls)),
		"productType": submission.ProductType,
		"amount":      submission.Amount,
	})
	if err != nil {
		return nil, errors.New("mock policy marshal failure")
	}

	return &Result{Status: 201, Body: body}, nil
}

// CallCount 返回已收到的调用次数
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
