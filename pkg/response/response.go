package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/order-api/internal/types"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response. ErrorCode is a stable machine-readable
// tag, distinct from the HTTP status.
type Error struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// Handle maps a service result to an HTTP response. Application errors carry
// their own code; anything unclassified is logged server-side and surfaced
// generically.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	var appErr *types.Error
	switch {
	case errors.As(err, &appErr):
		c.JSON(statusForCode(appErr.Code), Response{
			Success: false,
			Error: &Error{
				ErrorCode: appErr.Code,
				Message:   appErr.Message,
			},
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		InternalError(c, "An unexpected error occurred")
	}
}

// statusForCode maps application error codes to HTTP status classes.
func statusForCode(code string) int {
	switch code {
	case types.CodeBadRequest, types.CodeValidationError:
		return http.StatusBadRequest
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeConflict:
		return http.StatusConflict
	case types.CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case types.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case types.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeNotFound,
			Message:   message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeBadRequest,
			Message:   message,
		},
	})
}

// ValidationError sends a 400 response for malformed or invalid request bodies
func ValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeValidationError,
			Message:   message,
		},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &Error{
			ErrorCode: "UNAUTHORIZED",
			Message:   message,
		},
	})
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeTooManyRequests,
			Message:   message,
		},
	})
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeServiceUnavailable,
			Message:   message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			ErrorCode: types.CodeInternalError,
			Message:   message,
		},
	})
}
