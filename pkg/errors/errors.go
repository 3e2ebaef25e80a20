package errors

import stderrors "errors"

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 通用错误。
var (
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InternalError   = Definition{Code: "INTERNAL_ERROR", Message: "Internal error"}
)

// 认证相关错误。
var (
	Unauthorized = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	LoginFailed  = Definition{Code: "LOGIN_FAILED", Message: "Login failed"}
	TokenInvalid = Definition{Code: "TOKEN_INVALID", Message: "Token invalid"}
	Forbidden    = Definition{Code: "FORBIDDEN", Message: "Forbidden"}
)

// 投保向导错误。
var (
	ValidationFailed   = Definition{Code: "VALIDATION_FAILED", Message: "Validation failed"}
	StepMismatch       = Definition{Code: "STEP_MISMATCH", Message: "Submitted step does not match the current step"}
	SessionMissing     = Definition{Code: "SESSION_MISSING", Message: "Onboarding session missing"}
	SessionBusy        = Definition{Code: "SESSION_BUSY", Message: "Onboarding session is busy"}
	SubmissionInFlight = Definition{Code: "SUBMISSION_IN_FLIGHT", Message: "Policy submission already in progress"}
	WizardIncomplete   = Definition{Code: "WIZARD_INCOMPLETE", Message: "Onboarding is not ready for submission"}
	AlreadySubmitted   = Definition{Code: "ALREADY_SUBMITTED", Message: "Policy already submitted"}
	SubmissionFailed   = Definition{Code: "SUBMISSION_FAILED", Message: "Policy submission failed"}
)

// 内部错误，不直接暴露给客户端。
var (
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrUnexpectedSigningMethod      = stderrors.New("unexpected signing method")
	ErrInvalidToken                 = stderrors.New("invalid token")
	ErrInvalidTokenClaims           = stderrors.New("invalid token claims")
	ErrRoleNotFound                 = stderrors.New("role claim not found")
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:     InvalidRequest,
	TooManyRequests.Code:    TooManyRequests,
	InternalError.Code:      InternalError,
	Unauthorized.Code:       Unauthorized,
	LoginFailed.Code:        LoginFailed,
	TokenInvalid.Code:       TokenInvalid,
	Forbidden.Code:          Forbidden,
	ValidationFailed.Code:   ValidationFailed,
	StepMismatch.Code:       StepMismatch,
	SessionMissing.Code:     SessionMissing,
	SessionBusy.Code:        SessionBusy,
	SubmissionInFlight.Code: SubmissionInFlight,
	WizardIncomplete.Code:   WizardIncomplete,
	AlreadySubmitted.Code:   AlreadySubmitted,
	SubmissionFailed.Code:   SubmissionFailed,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
