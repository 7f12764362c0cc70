// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 人格引擎的错误类型
	ErrorTypeValidation  ErrorType = "validation_error"  // 输入校验失败，存储不会被修改
	ErrorTypeNotFound    ErrorType = "not_found"         // 用户/角色不存在
	ErrorTypePersistence ErrorType = "persistence_error" // 持久化写入失败，磁盘上保留先前状态
	ErrorTypeInvariant   ErrorType = "invariant_error"   // 范围不变式被破坏（如NaN得分）
	ErrorTypeProcessing  ErrorType = "processing_error"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewPersistenceError 创建持久化错误
func NewPersistenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistence, message, originalError)
}

// NewInvariantError 创建不变式错误
func NewInvariantError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeInvariant, message, originalError)
}

// isType 检查错误链中是否存在指定类型的 AppError
func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsPersistenceError 检查是否为持久化错误
func IsPersistenceError(err error) bool {
	return isType(err, ErrorTypePersistence)
}

// IsInvariantError 检查是否为不变式错误
func IsInvariantError(err error) bool {
	return isType(err, ErrorTypeInvariant)
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypePersistence:
		return "PERSISTENCE_ERROR"
	case ErrorTypeInvariant:
		return "INVARIANT_ERROR"
	case ErrorTypeProcessing:
		return "PROCESSING_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}
