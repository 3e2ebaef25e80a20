package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"PolicyWizard/pkg/errors"
	"PolicyWizard/pkg/identity"
	"PolicyWizard/pkg/logger"
	"PolicyWizard/pkg/token"
)

var (
	authService *AuthService
	authOnce    sync.Once
)

func InitAuth(client identity.Client) *AuthService {
	authOnce.Do(func() {
		authService = NewAuthService(client)
	})
	return authService
}

func Auth() *AuthService {
	if authService == nil {
		panic("auth service not initialized, call service.InitAuth() first")
	}
	return authService
}

type AuthService struct {
	client identity.Client
}

func NewAuthService(client identity.Client) *AuthService {
	return &AuthService{client: client}
}

// LoginResult 登录得到的 token 与其中的角色
type LoginResult struct {
	Token string
	Role  string
}

// Login 换取 token；角色解析失败不影响登录
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, errors.InvalidRequest
	}

	signed, err := s.client.Login(ctx, email, password)
	if err != nil {
		if stderrors.Is(err, identity.ErrInvalidCredential) || stderrors.Is(err, identity.ErrEmptyToken) {
			return nil, fmt.Errorf("%w: %w", errors.LoginFailed, err)
		}
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	role, err := token.DecodeRole(signed)
	if err != nil {
		logger.Logger.Warn("Failed to decode role from token",
			zap.String("email", email),
			zap.Error(err),
		)
	}

	return &LoginResult{Token: signed, Role: role}, nil
}
