package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"bess-dispatch/internal/api/handlers"
	"bess-dispatch/internal/api/middleware"
	"bess-dispatch/internal/config"
	"bess-dispatch/internal/store"
)

func main() {
	cfg := config.Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("load config %s: %v", path, err)
		}
		cfg = *loaded
	}

	port := os.Getenv("API_PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	// The run store is optional; without it /optimize still works but
	// nothing is persisted and the /runs endpoints are absent.
	var st *store.Store
	if cfg.Server.DBPath != "" {
		var err error
		st, err = store.Open(cfg.Server.DBPath)
		if err != nil {
			log.Printf("open run store %s: %v (persistence disabled)", cfg.Server.DBPath, err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	optimizeHandler := handlers.NewOptimizeHandler(cfg, st)
	sweepHandler := handlers.NewSweepHandler(cfg)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/optimize", optimizeHandler.Optimize)
		api.POST("/sweep", sweepHandler.Sweep)

		api.GET("/tariffs", handlers.ListTariffs)
		api.GET("/tariffs/:area/:voltage", handlers.GetTariff)

		if st != nil {
			runsHandler := handlers.NewRunsHandler(st)
			api.GET("/runs", runsHandler.List)
			api.GET("/runs/:id", runsHandler.Get)
			api.GET("/runs/:id/schedule", runsHandler.Schedule)
		}
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting API server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
