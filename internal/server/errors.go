package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/types"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrFileNotFound {
		return http.StatusNotFound
	}
	var pdfErr *pdf.PDFError
	if errors.As(err, &pdfErr) && pdfErr.Code == pdf.ErrPDFNotFound {
		return http.StatusNotFound
	}

	switch types.KindOf(err) {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindRemote:
		return http.StatusBadGateway
	case types.KindSession:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func codeOf(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	var pdfErr *pdf.PDFError
	if errors.As(err, &pdfErr) {
		return string(pdfErr.Code)
	}
	return ""
}

// errorHandler renders errors returned by handlers.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, errorResponse{Status: "error", Message: msg})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", err, logger.String("uri", c.Request().RequestURI))
	}
	_ = c.JSON(status, errorResponse{
		Status:  "error",
		Code:    codeOf(err),
		Kind:    string(types.KindOf(err)),
		Message: err.Error(),
	})
}

func badRequest(err error) error {
	return types.NewAppError(types.ErrInvalidInput, "invalid request body", err)
}
