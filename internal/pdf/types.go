// Package pdf wraps the PDF engines used by the translator: text extraction,
// validation and optimisation, page composition and rasterisation.
package pdf

import (
	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/types"
)

// PDFInfo PDF 文件信息
type PDFInfo struct {
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
}

// TextBlock 抽取出的文本块，坐标原点在页面左上角
type TextBlock struct {
	Text     string     `json:"text"`
	Rect     geom.Rect  `json:"rect"`
	FontSize float64    `json:"font_size"`
	FontName string     `json:"font_name"`
	Color    geom.Color `json:"color"`
	Lines    int        `json:"lines"`
}

// PageText 单页抽取结果
type PageText struct {
	Index  int         `json:"index"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Blocks []TextBlock `json:"blocks"`
}

// PDFErrorCode 错误代码枚举
type PDFErrorCode string

const (
	ErrPDFNotFound    PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid     PDFErrorCode = "PDF_INVALID"
	ErrPDFEncrypted   PDFErrorCode = "PDF_ENCRYPTED"
	ErrExtractFailed  PDFErrorCode = "EXTRACT_FAILED"
	ErrGenerateFailed PDFErrorCode = "GENERATE_FAILED"
	ErrRenderFailed   PDFErrorCode = "RENDER_FAILED"
	ErrFontMissing    PDFErrorCode = "FONT_MISSING"
	ErrPageRange      PDFErrorCode = "PAGE_OUT_OF_RANGE"
)

// PDFError PDF 处理错误
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
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
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// Kind classifies the error for callers: a bad page index is the caller's
// mistake, everything else is an I/O failure of the document or its font.
func (e *PDFError) Kind() types.ErrorKind {
	if e.Code == ErrPageRange {
		return types.KindValidation
	}
	return types.KindIO
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPDFErrorWithPage creates a new PDFError with page information
func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}
