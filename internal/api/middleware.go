package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates client credentials against the configured API
// keys. With no keys configured the proxy is open, which is the common
// local-only setup.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := s.deps.Security.APIKeys
		if len(keys) == 0 {
			c.Next()
			return
		}

		provided := clientKey(c)
		for _, key := range keys {
			if provided == key {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"type": "authentication_error", "message": "invalid api key"},
		})
	}
}

// clientKey extracts the credential from the places the three client
// families put it: Bearer token, Anthropic x-api-key, Gemini header or
// query key.
func clientKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(auth)
	}
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}
	if key := c.GetHeader("x-goog-api-key"); key != "" {
		return key
	}
	return c.Query("key")
}
