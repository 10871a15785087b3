package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/procurement-api/internal/middleware"
	"github.com/noah-isme/procurement-api/internal/models"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext returns the authenticated caller with request metadata.
func actorFromContext(c *gin.Context) (models.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	return models.Actor{
		Viewer:    claims.Viewer(),
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, nil
}
