// Package errors contains the JSON error responses of the HTTP API.
package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response.
type APIError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]interface{}) *APIError {
	return &APIError{
		Error:   message,
		Details: details,
	}
}

// SessionDetails returns the details of an error about a session.
func SessionDetails(sessionID string) map[string]interface{} {
	return map[string]interface{}{"session_id": sessionID}
}

// AbortWithBadRequest sends a 400 Bad Request response and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(message, details))
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusNotFound, NewAPIError(message, details))
}

// ServiceUnavailable sends a 503 response. Used when no title model can be resolved.
func ServiceUnavailable(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusServiceUnavailable, NewAPIError(message, details))
}

// Internal sends a 500 Internal Server Error response.
func Internal(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusInternalServerError, NewAPIError(message, details))
}
