package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/db"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/security"
	"gorm.io/gorm"
)

// APIKeyHandler handles API key administration endpoints.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(conn *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: conn}
}

// listAPIKeysQuery defines query parameters for listing API keys.
type listAPIKeysQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Search string `form:"search"`
	Status string `form:"status"`
}

// List returns a paginated list of API keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	var q listAPIKeysQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{})

	if q.Search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q.Search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	now := time.Now()
	sevenDaysLater := now.AddDate(0, 0, 7)
	switch q.Status {
	case "active":
		query = query.Where("active = true AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", sevenDaysLater)
	case "expiring":
		query = query.Where("active = true AND revoked_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ? AND expires_at > ?", sevenDaysLater, now)
	case "revoked":
		query = query.Where("revoked_at IS NOT NULL")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.APIKey
	offset := (q.Page - 1) * q.Limit
	if errFind := query.Order("created_at DESC").Offset(offset).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"name":         row.Name,
			"key_masked":   security.HideAPIKey(row.APIKey),
			"is_admin":     row.IsAdmin,
			"active":       row.Active,
			"status":       row.Status(),
			"expires_at":   row.ExpiresAt,
			"revoked_at":   row.RevokedAt,
			"last_used_at": row.LastUsedAt,
			"created_at":   row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"api_keys": out,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

// createAPIKeyRequest defines the request body for creating keys.
type createAPIKeyRequest struct {
	Name      string `json:"name"`
	IsAdmin   bool   `json:"is_admin"`
	ExpiresIn *int   `json:"expires_in_days"`
}

// Create issues a new API key. The full token is returned exactly once.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate api key failed"})
		return
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if body.ExpiresIn != nil && *body.ExpiresIn > 0 {
		exp := now.AddDate(0, 0, *body.ExpiresIn)
		expiresAt = &exp
	}

	row := models.APIKey{
		Name:      name,
		APIKey:    token,
		IsAdmin:   body.IsAdmin,
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    row.ID,
		"name":  row.Name,
		"token": token,
	})
}

// Revoke revokes an API key and marks it inactive. Revoking cascades
// nothing; the key's batches stay readable by nobody until deletion.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"active":     false,
			"revoked_at": &now,
			"updated_at": now,
		})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a revoked API key permanently, cascading its batches,
// proxy records, and history events.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND revoked_at IS NOT NULL", id).
		Delete(&models.APIKey{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found or not revoked"})
		return
	}
	c.Status(http.StatusNoContent)
}
