// Package types defines core data types and enums for the PDF visual translator.
package types

import "errors"

// Config 应用配置
type Config struct {
	Host              string  `json:"host"`
	Port              int     `json:"port"`
	PDFFolder         string  `json:"pdf_folder"`         // 浏览库根目录，/pdf/ 路由从这里取文件
	FontName          string  `json:"font_name"`          // 插入译文使用的字体名
	FontFile          string  `json:"font_file"`          // TTF 字体文件路径
	TargetLanguage    string  `json:"target_language"`    // 例如 "中文" 或 "zh-CN"
	Provider          string  `json:"provider"`           // 默认翻译服务商
	Model             string  `json:"model"`              // 默认模型
	ExtraRequirements string  `json:"extra_requirements"` // 附加翻译要求
	MinFontSize       float64 `json:"min_font_size"`      // 字号下限，默认 5
	PreviewScale      float64 `json:"preview_scale"`      // 预览缩放，默认 2.0
	LogFile           string  `json:"log_file"`
	LogLevel          string  `json:"log_level"`    // debug, info, warn, error
	OpenBrowser       bool    `json:"open_browser"` // serve 启动后是否打开浏览器
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
	ErrStore        ErrorCode = "STORE_ERROR"
	ErrNoSession    ErrorCode = "NO_SESSION"
	ErrUnknownModel ErrorCode = "UNKNOWN_PROVIDER"
)

// ErrorKind 错误大类：调用方据此决定重试还是直接上报
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindIO         ErrorKind = "io"
	KindRemote     ErrorKind = "remote"
	KindSession    ErrorKind = "session"
	KindInternal   ErrorKind = "internal"
)

// Kind returns the error class of a code.
func (c ErrorCode) Kind() ErrorKind {
	switch c {
	case ErrInvalidInput, ErrUnknownModel, ErrConfig:
		return KindValidation
	case ErrFileNotFound, ErrStore:
		return KindIO
	case ErrNetwork, ErrAPICall, ErrTranslation:
		return KindRemote
	case ErrNoSession:
		return KindSession
	default:
		return KindInternal
	}
}

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Kind returns the error class.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Kinded is implemented by errors that know their own class.
type Kinded interface {
	Kind() ErrorKind
}

// KindOf walks the error chain and returns the first known class.
// Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsValidation reports whether err is a caller mistake.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsRemote reports whether err came from a remote service.
func IsRemote(err error) bool { return KindOf(err) == KindRemote }
