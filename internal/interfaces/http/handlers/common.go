// Package handlers implements the HTTP endpoints of the consolidation API.
package handlers

import (
	stdliberrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/interfaces/http/middleware"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError maps err to a status through its error code.  Server-side
// failures are masked; the full error goes to gin's error list for logging.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ae *errors.AppError
	if !stdliberrors.As(err, &ae) {
		ae = errors.New(errors.ErrCodeInternal, "internal server error")
	}
	status := errors.HTTPStatusForCode(ae.Code)
	resp := ErrorResponse{
		Code:      string(ae.Code),
		Message:   ae.Message,
		Detail:    ae.Detail,
		RequestID: middleware.GetRequestID(c),
	}
	if status >= http.StatusInternalServerError {
		resp.Message = errors.DefaultMessageForCode(ae.Code)
		resp.Detail = ""
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the body into dst, answering 413 or 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if stdliberrors.As(err, &tooLarge) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:      string(errors.ErrCodeBadRequest),
			Message:   "request body too large",
			RequestID: middleware.GetRequestID(c),
		})
		return false
	}
	respondError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
	return false
}

// queryInt parses an optional positive integer query parameter.
func queryInt(c *gin.Context, name string, def, max int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.InvalidParam(name + " must be a positive integer").WithDetail(v)
	}
	if n > max {
		n = max
	}
	return n, nil
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}
