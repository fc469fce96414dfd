package main

import (
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/storage"
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connect opens the database and, when reachable, Redis. Without Redis the
// CLI still works; its writes are simply not announced to live viewers.
func connect(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	var feed changefeed.Publisher
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Redis unavailable, change events will not be published: %v", err)
		rdb.Close()
		rdb = nil
	} else {
		feed = changefeed.NewRedisBroker(rdb, nil)
	}

	s := storage.NewStorageService(db, rdb)
	return &app{
		Storage:    s,
		Complaints: complaint.NewService(s, feed),
		Verifier:   auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Redis:      rdb,
		Out:        os.Stdout,
	}, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	if err := newRootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}
