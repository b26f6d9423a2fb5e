package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbroekhuis/grondplan/internal/config"
	"github.com/tbroekhuis/grondplan/internal/database"
	"github.com/tbroekhuis/grondplan/internal/handlers"
	"github.com/tbroekhuis/grondplan/internal/index"
	"github.com/tbroekhuis/grondplan/internal/logger"
	"github.com/tbroekhuis/grondplan/internal/middleware"
	"github.com/tbroekhuis/grondplan/internal/repository"
	"github.com/tbroekhuis/grondplan/internal/services"
	"github.com/tbroekhuis/grondplan/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting Grondplan API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"backend":     cfg.Store.Backend,
		"index":       cfg.Store.IndexKind,
	})

	ctx := context.Background()

	// Select the persistence backend. The health readiness check pings the
	// database when one is in play; the memory backend is always ready.
	var (
		footprints store.Store
		pinger     handlers.Pinger
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure database schema", err, nil)
		}

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		footprints = pg
		pinger = db
	case config.BackendMemory:
		footprints = store.NewMemory()
		log.Info("Using in-memory store", nil)
	default:
		log.Fatal("Unknown store backend", nil, map[string]interface{}{
			"backend": cfg.Store.Backend,
		})
	}

	spatialIndex, err := index.New(cfg.Store.IndexKind)
	if err != nil {
		log.Fatal("Failed to create spatial index", err, map[string]interface{}{
			"kind": cfg.Store.IndexKind,
		})
	}

	footprintRepo := repository.NewFootprintRepository(footprints, spatialIndex, log)

	// The index is derived state; rebuild it from the store before serving.
	if err := footprintRepo.Rebuild(ctx); err != nil {
		log.Fatal("Failed to rebuild spatial index", err, nil)
	}
	log.Info("Spatial index rebuilt", map[string]interface{}{
		"entries": spatialIndex.Len(),
	})

	footprintService := services.NewFootprintService(footprintRepo, log, cfg.Query)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	healthHandler := handlers.NewHealthHandler(pinger, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	footprintHandler := handlers.NewFootprintHandler(footprintService)

	v1 := router.Group("/api/v1")
	{
		fps := v1.Group("/footprints")
		{
			fps.POST("", footprintHandler.Create)
			fps.GET("/bbox", footprintHandler.QueryBbox)
			fps.GET("/:id", footprintHandler.Get)
			fps.PUT("/:id", footprintHandler.Update)
			fps.PATCH("/:id", footprintHandler.Patch)
			fps.DELETE("/:id", footprintHandler.Delete)
		}

		collections := v1.Group("/collections")
		{
			collections.GET("", footprintHandler.ListCollections)
			collections.GET("/:collection/items", footprintHandler.CollectionItems)
			collections.GET("/:collection/items/:id", footprintHandler.CollectionItem)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
