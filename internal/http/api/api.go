// Package api registers the HTTP surface of the service.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/access"
	"github.com/kyralabs/proxymint/internal/http/api/handlers"
	"github.com/kyralabs/proxymint/internal/service"
	"github.com/kyralabs/proxymint/internal/store"
	"gorm.io/gorm"
)

// RegisterRoutes wires all endpoints onto the engine. Everything under /v0
// requires a valid API key; the admin group additionally requires an admin
// key.
func RegisterRoutes(r *gin.Engine, conn *gorm.DB, svc *service.Service, st *store.Store) {
	if r == nil || conn == nil {
		return
	}

	r.GET("/healthz", handlers.Health)

	v0 := r.Group("/v0")
	v0.Use(access.APIKeyAuthMiddleware(conn))

	proxyHandler := handlers.NewProxyHandler(svc)
	v0.POST("/proxies/generate", proxyHandler.Generate)
	v0.POST("/proxies/parse", proxyHandler.Parse)

	batchHandler := handlers.NewBatchHandler(st)
	v0.GET("/batches/:id", batchHandler.Get)
	v0.GET("/batches/:id/export", batchHandler.Export)

	historyHandler := handlers.NewHistoryHandler(st)
	v0.GET("/history", historyHandler.List)
	v0.GET("/history/stats", historyHandler.Stats)
	v0.POST("/history/actions", historyHandler.LogAction)

	admin := v0.Group("/admin")
	admin.Use(access.RequireAdmin())

	apiKeyHandler := handlers.NewAPIKeyHandler(conn)
	admin.GET("/api-keys", apiKeyHandler.List)
	admin.POST("/api-keys", apiKeyHandler.Create)
	admin.POST("/api-keys/:id/revoke", apiKeyHandler.Revoke)
	admin.DELETE("/api-keys/:id", apiKeyHandler.Delete)
}
