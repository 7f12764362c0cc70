// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	apperrors "github.com/Corphon/PersonaEvolveMCP/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse 统一的API响应结构
type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError API错误信息
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data any, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data any, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Message:   "资源创建成功",
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusCreated, response)
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string) {
	c.JSON(statusCode, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:    errorCode,
			Message: message,
		},
		Timestamp: time.Now(),
	})
}

// NotFound 资源不存在响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string) {
	rh.Error(c, http.StatusNotFound, "NOT_FOUND", message)
}

// BadRequest 请求参数错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string) {
	rh.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// HandleServiceError 根据错误类型映射HTTP状态码
func (rh *ResponseHelper) HandleServiceError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidationError(err):
		rh.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case apperrors.IsNotFoundError(err):
		rh.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case apperrors.IsInvariantError(err):
		rh.Error(c, http.StatusUnprocessableEntity, "INVARIANT_ERROR", err.Error())
	case apperrors.IsPersistenceError(err):
		rh.Error(c, http.StatusInternalServerError, "PERSISTENCE_ERROR", "存储操作失败")
	default:
		rh.Error(c, http.StatusInternalServerError, "PROCESSING_ERROR", "服务器内部错误")
	}
}
