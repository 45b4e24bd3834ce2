package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	// 引擎错误
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	ErrCodeCommandRejected  ErrorCode = "COMMAND_REJECTED"
	ErrCodeIndexNotFound    ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeDocumentExists   ErrorCode = "DOCUMENT_EXISTS"

	// 配置与结构错误
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeInvalidSchema ErrorCode = "INVALID_SCHEMA"

	// 内容错误
	ErrCodeRecordNotFound   ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"

	// 接口访问
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMIT_EXCEEDED"

	// 重建索引
	ErrCodeReindexInProgress ErrorCode = "REINDEX_IN_PROGRESS"

	// 扩展功能
	ErrCodeFeatureNotFound     ErrorCode = "FEATURE_NOT_FOUND"
	ErrCodeFeatureActive       ErrorCode = "FEATURE_ALREADY_ACTIVE"
	ErrCodeFeatureInactive     ErrorCode = "FEATURE_NOT_ACTIVE"
	ErrCodeFeatureRequirements ErrorCode = "FEATURE_REQUIREMENTS_UNMET"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewConnectionError 引擎或数据库不可达
func NewConnectionError(service string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeConnectionFailed,
		Message:  fmt.Sprintf("%s unreachable", service),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusServiceUnavailable,
		Cause:    cause,
	}
}

// NewCommandError 引擎拒绝了命令
func NewCommandError(command string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeCommandRejected,
		Message:  fmt.Sprintf("%s rejected", command),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewIndexNotFoundError 索引不存在
func NewIndexNotFoundError(index string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeIndexNotFound,
		Message:  fmt.Sprintf("index %s not found", index),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusNotFound,
		Cause:    cause,
	}
}

// NewDocumentExistsError 非替换写入遇到已存在的文档
func NewDocumentExistsError(key string) *AppError {
	return &AppError{
		Code:     ErrCodeDocumentExists,
		Message:  fmt.Sprintf("document %s already exists", key),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusConflict,
	}
}

// NewExtractionError 附件文本提取失败
func NewExtractionError(file string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeExtractionFailed,
		Message:  fmt.Sprintf("extract text from %s", file),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusUnprocessableEntity,
		Cause:    cause,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(code ErrorCode, resource string) *AppError {
	return &AppError{
		Code:     code,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewBusinessError 创建业务错误
func NewBusinessError(code ErrorCode, message string) *AppError {
	httpCode := http.StatusInternalServerError
	switch code {
	case ErrCodeReindexInProgress, ErrCodeFeatureActive, ErrCodeFeatureInactive:
		httpCode = http.StatusConflict
	case ErrCodeFeatureRequirements:
		httpCode = http.StatusPreconditionFailed
	case ErrCodeUnauthorized:
		httpCode = http.StatusUnauthorized
	case ErrCodeRateLimited:
		httpCode = http.StatusTooManyRequests
	}
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: httpCode,
	}
}

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError(ErrCodeInternal, "Internal server error").WithCause(err)
}

// IsCode 判断错误链中是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsConnectionError 是否为连接类错误
func IsConnectionError(err error) bool {
	return IsCode(err, ErrCodeConnectionFailed)
}

// IsEngineError 连接失败或命令被拒绝
func IsEngineError(err error) bool {
	return IsCode(err, ErrCodeConnectionFailed) ||
		IsCode(err, ErrCodeCommandRejected) ||
		IsCode(err, ErrCodeIndexNotFound)
}
