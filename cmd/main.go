package main

import (
	"complaintdesk/backend/internal/api/handler"
	"complaintdesk/backend/internal/attachments"
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/notify"
	"complaintdesk/backend/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// 3. Migrations
	if err := storage.NewStorageService(db, nil).AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

// buildDispatcher combines every configured delivery channel. It returns nil
// when none is configured.
func buildDispatcher(cfg *config.Config, l *localization.Localizer) notify.Dispatcher {
	var multi notify.Multi
	if cfg.ResendAPIKey != "" {
		multi = append(multi, notify.Channel{Name: "mail", Dispatcher: notify.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, l)})
	}
	if cfg.NotifyWebhookURL != "" {
		multi = append(multi, notify.Channel{Name: "webhook", Dispatcher: notify.NewWebhookDispatcher(cfg.NotifyWebhookURL, cfg.NotifyWebhookToken)})
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAdminChatID, l)
		if err != nil {
			log.Printf("WARNING: Telegram alerts disabled: %v", err)
		} else {
			multi = append(multi, notify.Channel{Name: "telegram", Dispatcher: tg})
		}
	}
	if len(multi) == 0 {
		return nil
	}
	return multi
}

func main() {
	log.Println("Starting complaint desk backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	db, rdb := setupDependencies(cfg)
	defer rdb.Close()
	s := storage.NewStorageService(db, rdb)

	// 2. Change feed and workflow
	hub := changefeed.NewHub()
	broker := changefeed.NewRedisBroker(rdb, hub)
	svc := complaint.NewService(s, broker)

	verifier := auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	h := handler.NewHandler(svc, s, auth.NewAuthenticator(verifier, s), hub)
	h.Ready = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}

	if cfg.AttachmentBucket != "" {
		files, err := attachments.NewGCSStore(ctx, cfg.AttachmentBucket, cfg.GCSCredentialsFile)
		if err != nil {
			log.Fatalf("Failed to set up attachments: %v", err)
		}
		defer files.Close()
		h.Attachments = files
	} else {
		log.Println("WARNING: ATTACHMENT_BUCKET not set, uploads are disabled")
	}

	dispatcher := buildDispatcher(cfg, localization.Default())
	if dispatcher == nil {
		log.Println("WARNING: No notification channel configured, outbox rows stay pending")
	}

	// 3. HTTP
	r := gin.Default()
	r.Use(metrics.Middleware())
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 4. Background goroutines
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return broker.Listen(gctx)
	})
	if dispatcher != nil {
		worker := notify.NewWorker(s, dispatcher, cfg.AdminEmails)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Println("Server stopped.")
}
