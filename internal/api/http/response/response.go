// Package response writes the JSON envelope of the HTTP API.
package response

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/apierrors"
)

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError writes err using the status and code of its kind. Causes of
// internal errors are never written.
func FromError(c *gin.Context, err error) {
	apiErr := apierrors.From(err)
	if len(apiErr.Fields) > 0 {
		ErrorWithDetails(c, apiErr.HTTPStatus(), string(apiErr.Kind), apiErr.Message, apiErr.Fields)
		return
	}
	Error(c, apiErr.HTTPStatus(), string(apiErr.Kind), apiErr.Message)
}
