// Package app wires configuration, storage, and the HTTP server together.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kyralabs/proxymint/internal/config"
	"github.com/kyralabs/proxymint/internal/db"
	"github.com/kyralabs/proxymint/internal/generator"
	"github.com/kyralabs/proxymint/internal/http/api"
	"github.com/kyralabs/proxymint/internal/logging"
	"github.com/kyralabs/proxymint/internal/models"
	"github.com/kyralabs/proxymint/internal/security"
	"github.com/kyralabs/proxymint/internal/service"
	"github.com/kyralabs/proxymint/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database, runs migrations, and bootstraps an admin key
// when none exists yet.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	return bootstrapAdminKey(ctx, conn)
}

// RunServer boots the full service: migrations, engine, store, routes.
func RunServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errBootstrap := bootstrapAdminKey(ctx, conn); errBootstrap != nil {
		return errBootstrap
	}

	st := store.New(conn)
	engine := generator.New(st)
	svc := service.New(engine, st)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, conn, svc, st)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// bootstrapAdminKey creates and prints an initial admin key when the key
// table is empty, so a fresh deployment can reach the admin endpoints.
func bootstrapAdminKey(ctx context.Context, conn *gorm.DB) error {
	var count int64
	if err := conn.WithContext(ctx).Model(&models.APIKey{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	token, err := security.GenerateAPIKey()
	if err != nil {
		return err
	}
	row := models.APIKey{
		Name:    "bootstrap-admin",
		APIKey:  token,
		IsAdmin: true,
		Active:  true,
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return errCreate
	}
	// Printed once; it is never retrievable in full again.
	log.Infof("created bootstrap admin key: %s", token)
	return nil
}
