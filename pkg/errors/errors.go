// Package errors 定义对外错误码与 HTTP 状态映射
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 对外错误码，1xxx 通用，4xxx 检索业务
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	CodeInvalidQuery    ErrorCode = "4001"
	CodeRetrievalFailed ErrorCode = "4003"
	CodeEmbeddingFailed ErrorCode = "4006"
)

var httpStatus = map[ErrorCode]int{
	CodeInvalidParam:       http.StatusBadRequest,
	CodeInvalidQuery:       http.StatusBadRequest,
	CodeTooManyRequests:    http.StatusTooManyRequests,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeRetrievalFailed:    http.StatusBadGateway,
	CodeEmbeddingFailed:    http.StatusBadGateway,
}

// AppError 携带错误码的应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 返回副本，预定义错误保持不变
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回附带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 未登记的错误码映射为 500
func New(code ErrorCode, message string) *AppError {
	status, ok := httpStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrInvalidQuery    = New(CodeInvalidQuery, "invalid search query")
	ErrEmbeddingFailed = New(CodeEmbeddingFailed, "embedding provider failed")
	ErrRetrievalFailed = New(CodeRetrievalFailed, "vector retrieval failed")
)

// IsAppError 错误链中是否含 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 链中无 AppError 时包装为 CodeUnknown
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return New(CodeUnknown, "unknown error").WithError(err)
}
