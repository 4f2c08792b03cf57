package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/access"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// HistoryHandler handles history listing, stats, and action logging.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(st *store.Store) *HistoryHandler {
	return &HistoryHandler{store: st}
}

// listHistoryQuery defines query parameters for listing history.
type listHistoryQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=50"`
}

// List returns the merged history for the caller's key, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q listHistoryQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}

	entries, err := h.store.FetchHistory(c.Request.Context(), keyID, q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		log.WithError(err).Error("history fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history fetch failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": entries,
		"page":    q.Page,
		"limit":   q.Limit,
	})
}

// logActionRequest defines the request body for logging an action.
type logActionRequest struct {
	Action string          `json:"action"`
	Total  int             `json:"total"`
	Detail json.RawMessage `json:"detail"`
}

// LogAction records a copy or download event for the caller's key.
func (h *HistoryHandler) LogAction(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body logActionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	action := strings.TrimSpace(body.Action)
	if action != models.ActionCopy && action != models.ActionDownload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be copy or download"})
		return
	}
	if body.Total < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total must not be negative"})
		return
	}

	var detail datatypes.JSON
	if len(body.Detail) > 0 {
		detail = datatypes.JSON(body.Detail)
	}

	if err := h.store.LogAction(c.Request.Context(), keyID, action, body.Total, detail); err != nil {
		log.WithError(err).Error("log action failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "log action failed"})
		return
	}
	c.Status(http.StatusCreated)
}

// Stats returns per-action counts and the cumulative generated total.
func (h *HistoryHandler) Stats(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.store.HistoryStats(c.Request.Context(), keyID)
	if err != nil {
		log.WithError(err).Error("history stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
