// Package identity 对接上游登录接口，换取携带角色信息的 token。
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"PolicyWizard/config"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/token"
)

var (
	ErrEmptyToken        = errors.New("empty response")
	ErrInvalidCredential = errors.New("invalid credentials")
)

// Client 登录客户端
type Client interface {
	Login(ctx context.Context, email, password string) (string, error)
}

var (
	identityClient Client
	identityOnce   sync.Once
	identityErr    error
)

func Init() error {
	identityOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.IdentityProvider {
		case "http":
			identityClient, identityErr = NewHTTPClient(cfg.LoginEndpoint, 10*time.Second)
		case "mock":
			identityClient = MockClient{}
		default:
			identityErr = fmt.Errorf("unsupported identity provider: %s", cfg.IdentityProvider)
		}

		if identityErr != nil {
			logger.Logger.Error("Failed to initialize identity client", zap.Error(identityErr))
			return
		}

		logger.Logger.Info("Identity client initialized successfully",
			zap.String("provider", cfg.IdentityProvider),
		)
	})

	return identityErr
}

func GetClient() Client {
	if identityClient == nil {
		panic("identity client not initialized, call identity.Init() first")
	}
	return identityClient
}

// HTTPClient 调用上游登录接口
type HTTPClient struct {
	endpoint string
	timeout  time.Duration
	client   *client.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, errors.New("login endpoint is not configured")
	}

	c, err := client.NewClient(client.WithDialTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create hertz client: %w", err)
	}

	return &HTTPClient{endpoint: endpoint, timeout: timeout, client: c}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, resp := protocol.AcquireRequest(), protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.endpoint)
	req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
	req.SetBody(body)

	if err := c.client.DoTimeout(ctx, req, resp, c.timeout); err != nil {
		return "", fmt.Errorf("failed to execute login request: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == consts.StatusUnauthorized || status == consts.StatusForbidden:
		return "", ErrInvalidCredential
	case status >= consts.StatusMultipleChoices:
		return "", fmt.Errorf("login endpoint returned status %d: %s", status, string(resp.Body()))
	}

	return ExtractToken(resp.Body())
}

// ExtractToken 兼容三种返回：JSON 字符串、{"token": "..."}、纯文本
func ExtractToken(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return "", ErrEmptyToken
	}

	var asString string
	if err := json.Unmarshal([]byte(trimmed), &asString); err == nil {
		if asString == "" {
			return "", ErrEmptyToken
		}
		return asString, nil
	}

	var asObject struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(trimmed), &asObject); err == nil {
		if asObject.Token == "" {
			return "", ErrEmptyToken
		}
		return asObject.Token, nil
	}

	return trimmed, nil
}

// MockClient 本地签发 token，邮箱以 admin 开头时角色为 admin
type MockClient struct{}

func (MockClient) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", ErrInvalidCredential
	}

	role := "customer"
	if strings.HasPrefix(email, "admin") {
		role = "admin"
	}

	signed, _, err := token.Generate(email, email, role)
	if err != nil {
		return "", err
	}
	return signed, nil
}
