package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskflow/internal/authz"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// AuthMiddleware verifies the Bearer token and stores the caller's id and role
// in the gin context. Browsers cannot set headers on a websocket handshake, so
// paths listed in queryTokenPaths may pass the token as ?token= instead.
func AuthMiddleware(secret []byte, queryTokenPaths ...string) gin.HandlerFunc {
	queryOK := make(map[string]bool, len(queryTokenPaths))
	for _, p := range queryTokenPaths {
		queryOK[p] = true
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		raw := bearer(c.GetHeader("Authorization"))
		if raw == "" && queryOK[c.FullPath()] {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := authz.ParseToken(secret, raw)
		if err != nil {
			logrus.Debugf("[auth][token][err] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
