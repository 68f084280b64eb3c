package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope every endpoint answers with. Exactly one of Data
// and Error is meaningful.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody carries a machine-readable code, its English message and, for
// validation and state errors, per-field details.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// NewPagination derives the page count from a total.
func NewPagination(page, perPage, totalItems int) *Pagination {
	p := &Pagination{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage > 0 {
		p.TotalPages = (totalItems + perPage - 1) / perPage
	}
	return p
}

// Success writes data with the given status.
func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, Response{Data: data}, false)
}

// SuccessWithPagination writes one page of a list.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	write(c, statusCode, Response{Data: data, Pagination: pagination}, false)
}

// Fail writes an error envelope for code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, Response{Error: newErrorBody(code, nil)}, false)
}

// FailWithFields writes an error envelope with field-level details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	write(c, statusCode, Response{Error: newErrorBody(code, fields)}, false)
}

// FailWithDetail writes an error envelope whose only field is "detail". Used
// for exam state errors, where the reason tells the client what to do next.
func FailWithDetail(c *gin.Context, statusCode int, code ErrCode, detail string) {
	FailWithFields(c, statusCode, code, map[string]string{"detail": detail})
}

// AbortFail stops the handler chain and writes an error envelope.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, Response{Error: newErrorBody(code, nil)}, true)
}

func newErrorBody(code ErrCode, fields map[string]string) *ErrorBody {
	return &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}
}

func write(c *gin.Context, statusCode int, resp Response, abort bool) {
	resp.Metadata = Metadata{
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if abort {
		c.AbortWithStatusJSON(statusCode, resp)
		return
	}
	c.JSON(statusCode, resp)
}

// requestID falls back to a fresh id when RequestIDMiddleware is not mounted,
// which is the case in handler unit tests.
func requestID(c *gin.Context) string {
	if id := c.GetString(ContextKeyRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}
