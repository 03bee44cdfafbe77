package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payment-core/pkg/errno"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Created returns a 201 response with data
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response; HTTP status comes from the errno
func Error(c *gin.Context, err error) {
	code, status, msg := errno.Decode(err)
	c.JSON(status, Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}

// ErrorWithData returns an error response carrying a body
// (例如 409 时带回已存在的 pending 单据)
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	code, status, msg := errno.Decode(err)
	c.JSON(status, Response{
		Code:    code,
		Message: msg,
		Data:    data,
	})
}
