package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/access"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/store"
	log "github.com/sirupsen/logrus"
)

// BatchHandler handles batch retrieval and export endpoints.
type BatchHandler struct {
	store *store.Store
}

// NewBatchHandler constructs a BatchHandler.
func NewBatchHandler(st *store.Store) *BatchHandler {
	return &BatchHandler{store: st}
}

// Get returns the records of one batch, oldest first.
func (h *BatchHandler) Get(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	batchID := strings.TrimSpace(c.Param("id"))

	rows, err := h.store.FetchBatch(c.Request.Context(), batchID, keyID)
	if err != nil {
		h.writeFetchError(c, err)
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"proxy_string": row.ProxyString,
			"host":         row.Host,
			"port":         row.Port,
			"user_id":      row.UserID,
			"country_code": row.CountryCode,
			"session_id":   row.SessionID,
			"created_at":   row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"total":    len(out),
		"proxies":  out,
	})
}

// Export streams the batch as plain text, one proxy string per line, and
// logs a download event for the key.
func (h *BatchHandler) Export(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	batchID := strings.TrimSpace(c.Param("id"))

	rows, err := h.store.FetchBatch(c.Request.Context(), batchID, keyID)
	if err != nil {
		h.writeFetchError(c, err)
		return
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.ProxyString)
	}

	if errLog := h.store.LogAction(c.Request.Context(), keyID, models.ActionDownload, len(rows), nil); errLog != nil {
		log.WithError(errLog).Warn("failed to log download event")
	}

	c.Header("Content-Disposition", `attachment; filename="proxies.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strings.Join(lines, "\n")+"\n"))
}

func (h *BatchHandler) writeFetchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	case errors.Is(err, store.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "batch belongs to another key"})
	default:
		log.WithError(err).Error("batch fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch fetch failed"})
	}
}
