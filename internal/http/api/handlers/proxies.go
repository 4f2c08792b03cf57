package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/access"
	"github.com/kyralabs/proxymint/internal/generator"
	"github.com/kyralabs/proxymint/internal/proxyfmt"
	"github.com/kyralabs/proxymint/internal/service"
	log "github.com/sirupsen/logrus"
)

// ProxyHandler handles generation and bulk parsing endpoints.
type ProxyHandler struct {
	svc *service.Service
}

// NewProxyHandler constructs a ProxyHandler.
func NewProxyHandler(svc *service.Service) *ProxyHandler {
	return &ProxyHandler{svc: svc}
}

// generateRequest defines the request body for proxy generation.
type generateRequest struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	UserID   string `json:"user_id"`
	Country  string `json:"country"`
	Password string `json:"password"`
	Quantity int    `json:"quantity"`
}

// Generate creates a batch of distinct proxy strings for the caller's key.
func (h *ProxyHandler) Generate(c *gin.Context) {
	keyID := access.KeyID(c)
	if keyID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body generateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	template := proxyfmt.Template{
		Host:     strings.TrimSpace(body.Host),
		Port:     strings.TrimSpace(body.Port),
		UserID:   strings.TrimSpace(body.UserID),
		Country:  strings.TrimSpace(body.Country),
		Password: strings.TrimSpace(body.Password),
	}

	outcome, err := h.svc.GenerateAndCommit(c.Request.Context(), keyID, template, body.Quantity)
	if err != nil {
		var missing *generator.MissingFieldError
		switch {
		case errors.Is(err, generator.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be between 1 and 5000"})
		case errors.As(err, &missing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields", "fields": missing.Fields})
		case errors.Is(err, generator.ErrUnknownCountry):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown country"})
		case errors.Is(err, generator.ErrExhaustedRetries):
			c.JSON(http.StatusConflict, gin.H{"error": "all candidates collided, nothing generated"})
		default:
			log.WithError(err).Error("proxy generation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
		}
		return
	}

	proxies := make([]string, 0, len(outcome.Records))
	for _, rec := range outcome.Records {
		proxies = append(proxies, rec.ProxyString)
	}

	c.JSON(http.StatusCreated, gin.H{
		"batch_id":        outcome.BatchID,
		"total_generated": len(outcome.Records),
		"shortfall":       outcome.Shortfall,
		"proxies":         proxies,
	})
}

// parseRequest defines the request body for bulk parsing.
type parseRequest struct {
	Proxies string `json:"proxies"`
}

// Parse splits a newline-separated paste into structured records. Lines the
// codec cannot parse are skipped and counted, never fatal.
func (h *ProxyHandler) Parse(c *gin.Context) {
	var body parseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var parsed []gin.H
	skipped := 0
	scanner := bufio.NewScanner(strings.NewReader(body.Proxies))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, errParse := h.parseLine(line)
		if errParse != nil {
			skipped++
			continue
		}
		parsed = append(parsed, rec)
	}

	c.JSON(http.StatusOK, gin.H{
		"parsed":  parsed,
		"total":   len(parsed),
		"skipped": skipped,
	})
}

func (h *ProxyHandler) parseLine(line string) (gin.H, error) {
	rec, err := proxyfmt.Parse(line)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"proxy_string": rec.ProxyString,
		"host":         rec.Host,
		"port":         rec.Port,
		"user_id":      rec.UserID,
		"country_code": rec.CountryCode,
		"session_id":   rec.SessionID,
	}, nil
}
