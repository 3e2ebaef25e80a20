package token

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"PolicyWizard/config"
	"PolicyWizard/pkg/errors"
)

const (
	// IdentityKey 登录后中间件写入上下文的身份字段
	IdentityKey = "role"

	// 上游身份服务把用户文档放在 _doc 下
	docClaim = "_doc"
)

var (
	// 这个实例会被 middleware 和 token 包共同使用
	sharedGenerator *jwt.HertzJWTMiddleware
	signingKey      []byte
)

func Init() error {
	return InitWithSecret(config.Cfg.JWTSecret, time.Duration(config.Cfg.JWTExpireMinutes)*time.Minute)
}

// InitWithSecret 使用显式的密钥初始化，测试中直接调用
func InitWithSecret(secret string, timeout time.Duration) error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(secret),
		Timeout:     timeout,
		MaxRefresh:  timeout,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}

	signingKey = []byte(secret)
	return nil
}

// GetGenerator 获取共享的 token 生成器（供 middleware 使用）
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// Generate 签发与上游身份服务结构一致的 token，mock 身份服务与测试使用
func Generate(subject, email, role string) (string, time.Time, error) {
	if sharedGenerator == nil {
		return "", time.Time{}, errors.ErrTokenGeneratorNotInitialized
	}

	now := time.Now()
	expiresAt := now.Add(sharedGenerator.Timeout)

	claims := jwtv5.MapClaims{
		docClaim: map[string]interface{}{
			"_id":   subject,
			"email": email,
			"role":  role,
		},
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// DecodeRole 解析 token 中的角色。配置了密钥时校验签名，否则只解码。
func DecodeRole(tokenString string) (string, error) {
	claims := jwtv5.MapClaims{}

	if len(signingKey) == 0 {
		if _, _, err := jwtv5.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return "", fmt.Errorf("failed to decode token: %w", err)
		}
	} else {
		parsed, err := jwtv5.ParseWithClaims(tokenString, claims, func(t *jwtv5.Token) (interface{}, error) {
			if t.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("%w: %v, expected HS256", errors.ErrUnexpectedSigningMethod, t.Header["alg"])
			}
			return signingKey, nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to parse token: %w", err)
		}
		if !parsed.Valid {
			return "", errors.ErrInvalidToken
		}
	}

	role, ok := RoleFromClaims(claims)
	if !ok {
		return "", errors.ErrRoleNotFound
	}
	return role, nil
}

// RoleFromClaims 优先读取 _doc.role，兼容顶层 role
func RoleFromClaims(claims map[string]interface{}) (string, bool) {
	if doc, ok := claims[docClaim].(map[string]interface{}); ok {
		if role, ok := doc["role"].(string); ok && role != "" {
			return role, true
		}
	}
	role, ok := claims["role"].(string)
	return role, ok && role != ""
}
