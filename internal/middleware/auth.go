package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend/internal/services"
)

const AdminSecretHeader = "X-Admin-Secret"

// AuthMiddleware guards the admin console
type AuthMiddleware struct {
	auth   services.AdminAuthenticator
	logger *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth services.AdminAuthenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, logger: logger}
}

// credential reads the admin secret or token from the headers, falling
// back to the query string for clients that cannot set headers
func credential(c *gin.Context) services.AdminCredential {
	cred := services.AdminCredential{
		Secret: c.GetHeader(AdminSecretHeader),
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		cred.Token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cred.Secret == "" && cred.Token == "" {
		cred.Secret = c.Query("secret")
		cred.Token = c.Query("token")
	}
	return cred
}

// AdminRequired rejects requests without valid admin credentials
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := m.auth.Authorize(credential(c))
		if err == nil {
			c.Set("admin", true)
			c.Next()
			return
		}

		if errors.Is(err, services.ErrAdminUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Admin credentials required",
			})
			return
		}

		m.logger.Warn("admin authentication failed",
			zap.String("client_ip", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Invalid admin credentials",
		})
	}
}
