// main.go - The entry point and router setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/api"
	"github.com/bosocmputer/meal_calorie_gemini/internal/storage"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Create the UPLOAD_DIR folder if it doesn't exist
	if err := os.MkdirAll(configs.UPLOAD_DIR, 0755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	// Step 1.5: Initialize MongoDB connection
	if err := storage.InitMongoDB(); err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer storage.CloseMongoDB()

	// Step 2: Initialize the Gin router
	router := gin.Default()
	router.MaxMultipartMemory = int64(configs.MAX_UPLOAD_SIZE_MB) << 20
	router.Use(api.CORSMiddleware())

	// Root endpoint for SSL verification
	router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Health check endpoint
	router.GET("/health", api.HealthHandler)

	// Step 3: Define the API routes
	v1 := router.Group("/api/v1")
	{
		// Anonymous analysis is allowed; save=true requires a session
		v1.POST("/analyze", api.OptionalAuth(), api.AnalyzeMealHandler)

		v1.POST("/auth/register", api.RegisterHandler)
		v1.POST("/auth/login", api.LoginHandler)
		v1.POST("/auth/logout", api.RequireAuth(), api.LogoutHandler)

		history := v1.Group("/history", api.RequireAuth())
		{
			history.GET("", api.ListHistoryHandler)
			history.POST("", api.SaveHistoryHandler)
			history.DELETE("/:id", api.DeleteHistoryHandler)
		}
	}

	// Step 4: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:           ":" + configs.PORT,
		Handler:        router,
		ReadTimeout:    30 * time.Second, // Uploads can be several MB on slow links
		WriteTimeout:   3 * time.Minute,  // One analysis fans out into a dozen AI calls
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST   /api/v1/analyze")
		log.Println("  POST   /api/v1/auth/register")
		log.Println("  POST   /api/v1/auth/login")
		log.Println("  POST   /api/v1/auth/logout")
		log.Println("  GET    /api/v1/history")
		log.Println("  POST   /api/v1/history")
		log.Println("  DELETE /api/v1/history/:id")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
