// Package server wires the HTTP API: routing, middleware and lifecycle.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"recserver/database"
	"recserver/internal/config"
	"recserver/server/handlers"
	"recserver/server/middleware"
	"recserver/server/services"
)

// Server is the HTTP front of the extraction service.
type Server struct {
	cfg        *config.Config
	db         *database.DB
	httpServer *http.Server
}

// New creates the server around an open database.
func New(cfg *config.Config, db *database.DB) *Server {
	return &Server{cfg: cfg, db: db}
}

// Handler builds the routed gin engine. Exposed separately so tests can
// drive the API without a listener.
func (s *Server) Handler() http.Handler {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())

	processor := services.NewProcessingService(s.db, s.cfg.ProcessingTimeout, s.cfg.OpenAIAPIKey, s.cfg.OpenAIModel)
	sessions := handlers.NewSessionHandler(s.db, processor, s.cfg.MaxUploadBytes)

	api := router.Group("/api")
	{
		api.POST("/upload", sessions.HandleUpload)
		api.GET("/status/:session_id", sessions.HandleStatus)
		api.GET("/results/:session_id", sessions.HandleResults)
		api.GET("/export/:session_id", sessions.HandleExport)
		api.GET("/health", sessions.HandleHealth)
	}

	handlers.RegisterSwaggerRoutes(router, "localhost:"+s.cfg.Port)

	return router
}

// Start serves the API until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
