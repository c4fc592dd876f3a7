package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"clipforge/config"
	"clipforge/handlers"
	"clipforge/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded: %s", cfg)

	// Optional Postgres persistence
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	if db != nil {
		log.Printf("Job history persistence enabled")
	}

	// Create Gin router
	router := gin.Default()

	// Setup CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Initialize video handler
	videoHandler := handlers.NewVideoHandler(cfg, db)

	// API routes
	api := router.Group("/api")
	api.Use(handlers.RequireJWT(cfg.JWTSecret))
	{
		api.POST("/render", videoHandler.Render)
		api.POST("/batch", videoHandler.RenderBatch)
		api.GET("/status/:job_id", videoHandler.GetStatus)
		api.GET("/download/:job_id", videoHandler.Download)
		api.GET("/codecs", videoHandler.GetCodecStats)
		api.GET("/history", videoHandler.GetHistory)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
