package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vidyavichar/internal/app"
	"vidyavichar/internal/config"
	"vidyavichar/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// @title VidyaVichar Q&A API
// @version 1.0
// @description Live classroom question board
// @host localhost:5000
// @BasePath /v1
func main() {
	log.Println("started")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	var stores app.Stores
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Println("Warning: STORE_DRIVER=memory, data is lost on restart")
		stores = app.MemoryStores()
	default:
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer mongoClient.Disconnect(context.Background())

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = mongoClient.Ping(pingCtx, nil)
		cancel()
		if err != nil {
			log.Fatal("Failed to ping MongoDB:", err)
		}
		log.Println("Connected to MongoDB")

		db := mongoClient.Database(cfg.MongoDatabase)
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = repository.EnsureIndexes(indexCtx, db)
		cancel()
		if err != nil {
			log.Fatal("Failed to create indexes:", err)
		}
		stores = app.MongoStores(db)
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		opts, err := cfg.RedisOptions()
		if err != nil {
			log.Fatal("Invalid Redis configuration:", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatal("Failed to ping Redis:", err)
		}
		log.Println("Connected to Redis")
	} else {
		log.Println("Warning: REDIS_URI not set, using in-process locks and no session cache")
	}

	a, err := app.New(cfg, stores, rdb)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := a.RunRelay(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Realtime relay stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST  /v1/sessions")
		log.Println("  PATCH /v1/sessions/{id}/end")
		log.Println("  GET   /v1/courses/{courseId}/sessions[/active]")
		log.Println("  GET/POST /v1/courses/{courseId}/questions")
		log.Println("  POST  /v1/courses/{courseId}/questions/clear")
		log.Println("  PATCH/DELETE /v1/questions/{id}")
		log.Println("  GET   /v1/questions/mine")
		log.Println("  WS    /v1/ws")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
