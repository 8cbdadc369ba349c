package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-coursework-api/internal/middleware"
	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
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

// callerFromContext converts stored claims into the policy caller. The bool
// is false when the route ran without the JWT middleware.
func callerFromContext(c *gin.Context) (policy.Caller, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return policy.Caller{}, false
	}
	return policy.FromClaims(claims), true
}
