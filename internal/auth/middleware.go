package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/pkg/log"
)

const (
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireAdmin returns a Gin middleware that only admits requests carrying
// a valid operator session token.
func (s *Service) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, domain.APIResponse{
				Success: false,
				Error:   "missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, domain.APIResponse{
				Success: false,
				Error:   "invalid authorization format",
			})
			return
		}

		claims, err := s.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil || !IsAdmin(claims.Identity) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, domain.APIResponse{
				Success: false,
				Error:   "invalid token",
			})
			return
		}

		c.Set(log.FieldUserID, claims.Identity)
		c.Next()
	}
}
