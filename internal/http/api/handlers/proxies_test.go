package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/kyralabs/proxymint/internal/access"
	"github.com/kyralabs/proxymint/internal/db"
	"github.com/kyralabs/proxymint/internal/generator"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/service"
	"github.com/kyralabs/proxymint/internal/store"
	"gorm.io/gorm"
)

const testAPIKey = "pmx_handler_test"

func newHandlerTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if err := conn.Create(&models.APIKey{Name: "t", APIKey: testAPIKey, Active: true}).Error; err != nil {
		t.Fatalf("create key: %v", err)
	}

	st := store.New(conn)
	svc := service.New(generator.New(st), st)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/v0")
	authed.Use(access.APIKeyAuthMiddleware(conn))
	proxyHandler := NewProxyHandler(svc)
	authed.POST("/proxies/generate", proxyHandler.Generate)
	authed.POST("/proxies/parse", proxyHandler.Parse)
	historyHandler := NewHistoryHandler(st)
	authed.GET("/history", historyHandler.List)
	return r, conn
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateEndToEnd(t *testing.T) {
	r, conn := newHandlerTestServer(t)

	w := doJSON(t, r, "POST", "/v0/proxies/generate", `{
		"host": "b2b-s1.example.com",
		"port": "8080",
		"user_id": "abc",
		"country": "us",
		"password": "pw",
		"quantity": 3
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		BatchID        string   `json:"batch_id"`
		TotalGenerated int      `json:"total_generated"`
		Shortfall      int      `json:"shortfall"`
		Proxies        []string `json:"proxies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BatchID == "" {
		t.Fatalf("batch_id is empty")
	}
	if resp.TotalGenerated != 3 || resp.Shortfall != 0 {
		t.Fatalf("total = %d shortfall = %d, want 3/0", resp.TotalGenerated, resp.Shortfall)
	}

	shape := regexp.MustCompile(`^b2b-s(\d+)\.example\.com:8080:abc-lv_us-(\d{6}):pw$`)
	for _, p := range resp.Proxies {
		m := shape.FindStringSubmatch(p)
		if m == nil {
			t.Fatalf("proxy %q does not match expected shape", p)
		}
		shard, _ := strconv.Atoi(m[1])
		if shard < 1 || shard > 15 {
			t.Fatalf("proxy %q shard %d out of range", p, shard)
		}
	}

	var batch models.Batch
	if err := conn.First(&batch, "id = ?", resp.BatchID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if batch.TotalGenerated != 3 {
		t.Fatalf("batch total_generated = %d, want 3", batch.TotalGenerated)
	}

	// The generate call shows up in history exactly once.
	w = doJSON(t, r, "GET", "/v0/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", w.Code, w.Body.String())
	}
	var hist struct {
		History []struct {
			BatchID        string `json:"batch_id"`
			ActionType     string `json:"action_type"`
			TotalGenerated int    `json:"total_generated"`
		} `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.History) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist.History))
	}
	if hist.History[0].ActionType != models.ActionGenerate || hist.History[0].TotalGenerated != 3 {
		t.Fatalf("history entry = %+v, want generate/3", hist.History[0])
	}
	if hist.History[0].BatchID != resp.BatchID {
		t.Fatalf("history batch id = %q, want %q", hist.History[0].BatchID, resp.BatchID)
	}
}

func TestGenerateQuantityTooLarge(t *testing.T) {
	r, conn := newHandlerTestServer(t)

	w := doJSON(t, r, "POST", "/v0/proxies/generate", `{
		"host": "b2b-s1.example.com",
		"port": "8080",
		"user_id": "abc",
		"country": "us",
		"password": "pw",
		"quantity": 5001
	}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}

	var batches, records int64
	if err := conn.Model(&models.Batch{}).Count(&batches).Error; err != nil {
		t.Fatalf("count batches: %v", err)
	}
	if err := conn.Model(&models.ProxyRecord{}).Count(&records).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if batches != 0 || records != 0 {
		t.Fatalf("store not empty after rejected request: %d batches, %d records", batches, records)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	r, _ := newHandlerTestServer(t)

	w := doJSON(t, r, "POST", "/v0/proxies/generate", `{
		"host": "b2b-s1.example.com",
		"country": "us",
		"quantity": 2
	}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Fields) == 0 {
		t.Fatalf("expected named missing fields, body %s", w.Body.String())
	}
}

func TestGenerateUnknownCountry(t *testing.T) {
	r, _ := newHandlerTestServer(t)

	w := doJSON(t, r, "POST", "/v0/proxies/generate", `{
		"host": "b2b-s1.example.com",
		"port": "8080",
		"user_id": "abc",
		"country": "atlantis",
		"password": "pw",
		"quantity": 1
	}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	r, _ := newHandlerTestServer(t)

	body := `{"proxies": "b2b-s3.example.com:8080:abc-lv_us-123456:pw\nnot a proxy\n\nb2b-s4.example.com:8080:abc-gb_residential-654321:pw\n"}`
	w := doJSON(t, r, "POST", "/v0/proxies/parse", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total   int `json:"total"`
		Skipped int `json:"skipped"`
		Parsed  []struct {
			CountryCode string `json:"country_code"`
			SessionID   string `json:"session_id"`
		} `json:"parsed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || resp.Skipped != 1 {
		t.Fatalf("total = %d skipped = %d, want 2/1", resp.Total, resp.Skipped)
	}
	if resp.Parsed[0].CountryCode != "us" || resp.Parsed[1].CountryCode != "gb" {
		t.Fatalf("country codes = %q/%q, want us/gb", resp.Parsed[0].CountryCode, resp.Parsed[1].CountryCode)
	}
}
