package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openclass/classroom-api/internal/middleware"
	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
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

func actorFromContext(c *gin.Context) (policy.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return policy.Actor{}, false
	}
	return policy.ActorFromClaims(claims), true
}
