// internal/utils/response.go
package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"label-service/internal/niimbot"
	"label-service/internal/transport"
)

// APIResponse represents standard API response structure
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{
		Code:    getErrorCode(statusCode),
		Message: message,
	}

	if err != nil {
		apiError.Details = err.Error()
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// DomainErrorResponse maps a printer or transport error to its HTTP status and
// stable error code
func DomainErrorResponse(c *gin.Context, message string, err error) {
	domainErrorResponse(c, message, err, nil)
}

// JobErrorResponse is DomainErrorResponse with the failed job record attached
// under data.job
func JobErrorResponse(c *gin.Context, message string, err error, job interface{}) {
	domainErrorResponse(c, message, err, gin.H{"job": job})
}

func domainErrorResponse(c *gin.Context, message string, err error, data gin.H) {
	status := StatusForError(err)
	apiError := &APIError{
		Code:    niimbot.ErrorCode(err),
		Message: message,
		Details: err.Error(),
	}
	if data == nil {
		data = gin.H{}
	}

	var ambiguous *transport.AmbiguousPortError
	switch {
	case errors.As(err, &ambiguous):
		apiError.Code = "AMBIGUOUS_PORT"
		data["candidates"] = ambiguous.Candidates
	case errors.Is(err, transport.ErrNoPorts):
		apiError.Code = "NO_PORTS"
	case apiError.Code == "UNKNOWN_ERROR":
		apiError.Code = getErrorCode(status)
	}

	var jobErr *niimbot.JobError
	if errors.As(err, &jobErr) {
		data["state"] = jobErr.State
	}

	response := APIResponse{
		Success:   false,
		Message:   message,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}
	if len(data) > 0 {
		response.Data = data
	}
	c.JSON(status, response)
}

// StatusForError returns the HTTP status for a printer or transport error
func StatusForError(err error) int {
	var ambiguous *transport.AmbiguousPortError
	switch {
	case errors.As(err, &ambiguous):
		return http.StatusConflict
	case errors.Is(err, transport.ErrNoPorts):
		return http.StatusServiceUnavailable
	case errors.Is(err, niimbot.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, niimbot.ErrNoResponse), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, niimbot.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, niimbot.ErrDeviceError), errors.Is(err, niimbot.ErrUnsupported),
		errors.Is(err, niimbot.ErrFraming), niimbot.ErrorCode(err) == "NOT_ACKNOWLEDGED":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorResponse sends validation error response
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	apiError := &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
	}

	response := APIResponse{
		Success:   false,
		Message:   "Validation failed",
		Error:     apiError,
		Data:      gin.H{"validation_errors": errors},
		Timestamp: time.Now(),
		RequestID: getRequestID(c),
	}

	c.JSON(http.StatusBadRequest, response)
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMIT_EXCEEDED"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusBadGateway:
		return "BAD_GATEWAY"
	case http.StatusGatewayTimeout:
		return "GATEWAY_TIMEOUT"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
