package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse 返回错误响应
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

// codedErrorResponse 返回带错误码的响应
func codedErrorResponse(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

// internalErrorResponse 返回 500，不暴露内部原因
func internalErrorResponse(c *gin.Context, code string) {
	codedErrorResponse(c, http.StatusInternalServerError, "internal server error", code)
}

// successResponse 返回成功响应
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}
