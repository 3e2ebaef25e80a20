package model

// LoginRequest 登录请求体
type LoginRequest struct {
	Email    string `json:"email" vd:"len($)>0"`
	Password string `json:"password" vd:"len($)>0"`
}

// LoginResponse 登录成功后 token 只通过 cookie 下发
type LoginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role,omitempty"`
	ExpiresAt     string `json:"expiresAt"`
}

// MeResponse 当前登录身份
type MeResponse struct {
	Role string `json:"role"`
}
