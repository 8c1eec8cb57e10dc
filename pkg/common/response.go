package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint writes: data on success, error otherwise.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo is the error half of the envelope.
type ErrorInfo struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}

// Meta describes one page of a listing.
type Meta struct {
	Limit      int   `json:"limit,omitempty"`
	Offset     int   `json:"offset,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
	HasMore    bool  `json:"has_more"`
}

func writeData(c *gin.Context, status int, data interface{}, meta *Meta) {
	c.JSON(status, Response{Success: true, Data: data, Meta: meta})
}

func writeError(c *gin.Context, info *ErrorInfo) {
	c.JSON(info.Code, Response{Error: info})
}

// SuccessResponse writes data with 200.
func SuccessResponse(c *gin.Context, data interface{}) {
	writeData(c, http.StatusOK, data, nil)
}

// SuccessResponseWithMeta writes a page of data with 200.
func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	writeData(c, http.StatusOK, data, meta)
}

// CreatedResponse writes data with 201.
func CreatedResponse(c *gin.Context, data interface{}) {
	writeData(c, http.StatusCreated, data, nil)
}

// ErrorResponse writes a bare error message with the given status.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	writeError(c, &ErrorInfo{Code: statusCode, Message: message})
}

// AppErrorResponse writes err, keeping its machine-readable code.
func AppErrorResponse(c *gin.Context, err *AppError) {
	writeError(c, &ErrorInfo{Code: err.Code, ErrorCode: err.ErrorCode, Message: err.Message})
}
