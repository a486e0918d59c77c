package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/metrics"
	"github.com/jwebster45206/novel-engine/internal/middleware"
	"github.com/jwebster45206/novel-engine/internal/services/events"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg.Environment, cfg.Level())

	log.Info("Starting Novel Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"content_path", cfg.ContentPath)

	table, warnings, err := content.Load(cfg.ContentPath)
	if err != nil {
		log.Error("Failed to load content", "path", cfg.ContentPath, "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		log.Warn("Content warning", "scene_id", w.SceneID, "warning", w.String())
	}
	log.Info("Content loaded", "title", table.Title, "scenes", len(table.Scenes), "entry_scene", table.EntryScene)

	redisStorage, err := storage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
	if err != nil {
		log.Error("Failed to configure storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := redisStorage.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	saves, err := storage.OpenSaveStore(cfg.SavesPath, log)
	if err != nil {
		log.Error("Failed to open save store", "path", cfg.SavesPath, "error", err)
		os.Exit(1)
	}

	broadcaster := events.NewBroadcaster(redisStorage.Client(), log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(table, redisStorage, log))
	mux.Handle("/metrics", metrics.Handler())

	scenesHandler := handlers.NewScenesHandler(table, log)
	mux.Handle("/v1/scenes", scenesHandler)
	mux.Handle("/v1/scenes/", scenesHandler)

	sessionHandler := handlers.NewSessionHandler(table, redisStorage, saves, broadcaster, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(redisStorage.Client(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream stays open until the client leaves
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := saves.Close(); err != nil {
		log.Error("Error closing save store", "error", err)
	}
	if err := redisStorage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
