package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFilmNotFound 影片不存在或属于其他用户
// 两种情况统一用同一个错误，避免泄露“存在但不是你的”这一信息
var ErrFilmNotFound = errors.New("影片不存在或无权操作")

// DuplicateFilmsError 批量创建时存在重复标题，携带全部冲突标题
type DuplicateFilmsError struct {
	Titles []string
}

func (e *DuplicateFilmsError) Error() string {
	return fmt.Sprintf("以下影片已存在: %s", strings.Join(e.Titles, ", "))
}

// OpenRouter 客户端错误码
const (
	ErrCodeMissingAPIKey         = "MISSING_API_KEY"
	ErrCodeInvalidModelParams    = "INVALID_MODEL_PARAMETERS"
	ErrCodeInvalidRequestPayload = "INVALID_REQUEST_PAYLOAD"
	ErrCodeInvalidUserMessage    = "INVALID_USER_MESSAGE"
	ErrCodeAPIRequestFailed      = "API_REQUEST_FAILED"
	ErrCodeInvalidResponseFormat = "INVALID_RESPONSE_FORMAT"
	ErrCodeMaxRetriesExceeded    = "MAX_RETRIES_EXCEEDED"
)

// ErrCodeGenerationError 推荐流程失败时写入错误日志的兜底错误码
const ErrCodeGenerationError = "GENERATION_ERROR"

// ErrorContext 错误上下文，随错误一路携带便于追踪
type ErrorContext struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"max_attempts,omitempty"`
}

// OpenRouterError 带机器可读错误码的客户端错误
type OpenRouterError struct {
	Message    string
	Code       string
	HTTPStatus int // API_REQUEST_FAILED 时记录上游状态码
	Context    *ErrorContext
	Cause      error
}

func (e *OpenRouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *OpenRouterError) Unwrap() error {
	return e.Cause
}

// Retryable 判断该错误是否值得重试
// 4xx 等客户端错误重试无意义；响应格式错误说明上游已经应答，也不重试
func (e *OpenRouterError) Retryable() bool {
	switch e.Code {
	case ErrCodeInvalidRequestPayload, ErrCodeInvalidUserMessage,
		ErrCodeInvalidModelParams, ErrCodeInvalidResponseFormat:
		return false
	case ErrCodeAPIRequestFailed:
		return e.HTTPStatus < 400 || e.HTTPStatus >= 500
	}
	return true
}

// ParseError 模型回复内容无法解析为影片列表
// 内容已经是最终应答，解析失败不重试
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("解析模型回复失败: %s: %v", e.Message, e.Cause)
	}
	return "解析模型回复失败: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
