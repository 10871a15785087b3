package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
	"github.com/noah-isme/procurement-api/pkg/response"
)

// RequireFeature short-circuits a route group with 503 when the feature is switched off.
func RequireFeature(name string, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enabled {
			c.Next()
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrServiceDisabled, name+" are disabled"))
		c.Abort()
	}
}
