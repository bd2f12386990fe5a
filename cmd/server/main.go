// @title Recommendation Extraction API
// @version 1.0
// @description Extracts service provider recommendations from exported WhatsApp chats.

// @host localhost:8080
// @BasePath /
// @schemes http https

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"recserver/database"
	"recserver/internal/config"
	"recserver/server"
)

func main() {
	log.Println("Starting recommendation extraction server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	log.Printf("Configuration loaded. Port: %s, database: %s", cfg.Port, cfg.DatabasePath)
	if !cfg.AIEnabled() {
		log.Println("OPENAI_API_KEY not set, AI enhancement disabled")
	}

	db, err := database.NewDB(cfg.DatabasePath, cfg.Retention)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db.StartJanitor(ctx, cfg.JanitorInterval)

	srv := server.New(cfg, db)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("Server stopped")
}
