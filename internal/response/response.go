// Package response writes the JSON envelope every endpoint answers with
// and is the only place typed errors become HTTP status codes.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/security"
	"krishimitra/api/internal/service"
	"krishimitra/api/internal/validation"
)

const (
	MsgValidationFailed   = "Validation failed"
	MsgInvalidBody        = "Invalid request body"
	MsgUserConflict       = "User with this username or mobile number already exists"
	MsgInvalidCredentials = "Invalid username or password"
	MsgInvalidToken       = "Invalid or expired token"
	MsgTokenRequired      = "Access token required"
	MsgTooManyRequests    = "Too many requests from this IP, please try again later"
	MsgUnavailable        = "Service temporarily unavailable, please try again later"
	MsgNotFound           = "Route not found"
	MsgInternal           = "Internal server error"
)

// ErrInvalidBody marks a request body that is not decodable JSON.
var ErrInvalidBody = errors.New("invalid request body")

type Envelope struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Timestamp string                  `json:"timestamp,omitempty"`
	Data      any                     `json:"data,omitempty"`
	Errors    []validation.FieldError `json:"errors,omitempty"`
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Fail aborts the chain so later middleware and handlers do not run.
func Fail(c *gin.Context, status int, message string, fieldErrors ...validation.FieldError) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Message: message,
		Errors:  fieldErrors,
	})
}

// Status maps an error to its status code and client-facing message.
// Anything unrecognised is a 500 whose detail stays server-side.
func Status(err error) (int, string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, MsgValidationFailed
	case errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest, MsgInvalidBody
	case errors.Is(err, service.ErrUserConflict):
		return http.StatusConflict, MsgUserConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, security.ErrTokenInvalid),
		errors.Is(err, security.ErrTokenExpired),
		errors.Is(err, security.ErrTokenRevoked):
		return http.StatusUnauthorized, MsgInvalidToken
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// Error writes err as an envelope. Only server faults are logged; client
// errors are expected traffic.
func Error(c *gin.Context, log zerolog.Logger, err error) {
	status, message := Status(err)

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("request failed")
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		Fail(c, status, message, verrs...)
		return
	}
	Fail(c, status, message)
}
