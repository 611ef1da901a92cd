package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-images-server-go/internal/platform/errors"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
	TraceID string      `json:"traceId,omitempty"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
		TraceID: TraceID(c),
	})
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
		TraceID: TraceID(c),
	})
}

// StatusForKind maps an error kind to the HTTP status reported to callers.
// Only client input problems are 4xx.
func StatusForKind(kind errors.Kind) int {
	if kind == errors.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
