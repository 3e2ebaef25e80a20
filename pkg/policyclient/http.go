package policyclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	json "github.com/goccy/go-json"

	"PolicyWizard/internal/wizard"
)

var ErrInvalidResponse = errors.New("policy endpoint returned a non-JSON body")

// Result 投保接口成功时的响应
type Result struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// UpstreamError 非 2xx 响应，Body 为响应原文
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("policy endpoint returned status %d: %s", e.Status, e.Body)
}

// HTTPClient 通过 hertz client 调用投保接口
type HTTPClient struct {
	endpoint string
	timeout  time.Duration
	client   *client.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, errors.New("policy endpoint is not configured")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c, err := client.NewClient(
		client.WithDialTimeout(5*time.Second),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hertz client: %w", err)
	}

	return &HTTPClient{
		endpoint: endpoint,
		timeout:  timeout,
		client:   c,
	}, nil
}

func (c *HTTPClient) CreatePolicy(ctx context.Context, submission wizard.PolicySubmission) (*Result, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy submission: %w", err)
	}

	// 不使用对象池：ctx 取消后请求可能仍在后台 goroutine 中使用
	req := &protocol.Request{}
	resp := &protocol.Response{}
	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.endpoint)
	req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	done := make(chan error, 1)
	go func() {
		done <- c.client.DoDeadline(ctx, req, resp, deadline)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("policy request aborted: %w", ctx.Err())
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("policy request aborted: %w", ctx.Err())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to execute request to policy endpoint: %w", err)
		}
	}

	status := resp.StatusCode()
	respBody := resp.Body()

	if status < consts.StatusOK || status >= consts.StatusMultipleChoices {
		return nil, &UpstreamError{Status: status, Body: string(respBody)}
	}

	result := &Result{Status: status}
	if len(respBody) == 0 {
		return result, nil
	}
	if !json.Valid(respBody) {
		return nil, ErrInvalidResponse
	}
	result.Body = append(json.RawMessage(nil), respBody...)

	return result, nil
}
