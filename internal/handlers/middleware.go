package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/miglopesdev98/library-service/internal/services"
)

const claimsKey = "authClaims"

// requireAuth validates the bearer token with the given scope and stores the
// claims on the context for downstream handlers.
func requireAuth(auth services.AuthService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, codeAuthRequired, "missing authorization token")
			return
		}
		claims, err := auth.VerifyToken(token, scope)
		if err != nil {
			respondError(c, http.StatusUnauthorized, codeInvalidToken, "invalid or expired token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireAdmin gates an endpoint on the admin capability in the already
// validated claims. Must run after requireAuth.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil || !claims.HasCapability("admin") {
			respondError(c, http.StatusForbidden, codeAdminRequired, "admin access required")
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *services.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*services.Claims)
	return claims
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
