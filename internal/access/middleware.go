// Package access authenticates requests against API keys stored in the
// database and exposes the resolved key identity to handlers.
package access

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Context keys set after successful authentication.
const (
	ContextAPIKeyID = "apiKeyID"
	ContextIsAdmin  = "isAdmin"
)

// APIKeyAuthMiddleware validates the presented API key and injects the
// owning key id and admin flag into the request context.
func APIKeyAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		var apiKey models.APIKey
		err := db.WithContext(c.Request.Context()).
			Where("api_key = ? AND active = ? AND revoked_at IS NULL", token, true).
			First(&apiKey).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		default:
			log.WithError(err).Error("api key lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication unavailable"})
			return
		}

		if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key expired"})
			return
		}

		// Best effort; a failed stamp must not reject the request.
		now := time.Now().UTC()
		if errStamp := db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
			Where("id = ?", apiKey.ID).
			Update("last_used_at", &now).Error; errStamp != nil {
			log.WithError(errStamp).Warn("failed to update api key last_used_at")
		}

		c.Set(ContextAPIKeyID, apiKey.ID)
		c.Set(ContextIsAdmin, apiKey.IsAdmin)
		c.Next()
	}
}

// RequireAdmin aborts requests whose key is not an admin key.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin key required"})
			return
		}
		c.Next()
	}
}

// KeyID returns the authenticated API key id, or 0 when absent.
func KeyID(c *gin.Context) uint64 {
	val, exists := c.Get(ContextAPIKeyID)
	if !exists {
		return 0
	}
	id, ok := val.(uint64)
	if !ok {
		return 0
	}
	return id
}

// IsAdmin reports whether the authenticated key is an admin key.
func IsAdmin(c *gin.Context) bool {
	val, exists := c.Get(ContextIsAdmin)
	if !exists {
		return false
	}
	isAdmin, ok := val.(bool)
	return ok && isAdmin
}

// extractToken extracts an API key token from the Authorization header or
// the X-API-Key header.
func extractToken(r *http.Request) string {
	val := strings.TrimSpace(r.Header.Get("Authorization"))
	if val != "" {
		if strings.HasPrefix(val, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(val, "Bearer "))
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	return ""
}
