package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/paidmedia-monitor/internal/api"
	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/notify"
	"github.com/ignite/paidmedia-monitor/internal/pkg/distlock"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
	"github.com/ignite/paidmedia-monitor/internal/reconciler"
	"github.com/ignite/paidmedia-monitor/internal/report"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
	"github.com/ignite/paidmedia-monitor/internal/storage"
	"github.com/ignite/paidmedia-monitor/internal/surfside"
	"github.com/ignite/paidmedia-monitor/internal/vibe"
)

func main() {
	log.Println("Starting paid media monitor API server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	db, err := postgres.Open(cfg.Database.URL,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		time.Duration(cfg.Database.ConnMaxLifetime)*time.Minute)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	clientRepo := postgres.NewClientRepo(db)
	metricsRepo := postgres.NewMetricsRepo(db)
	ingestionRepo := postgres.NewIngestionRepo(db)
	reportRepo := postgres.NewReportRepo(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the run locks and the vibe creation quota. Without it
	// the system falls back to PG advisory locks and an in-process quota.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL (%v), using address form", err)
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v — falling back to PG advisory locks", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("Redis connected (distributed locking and shared quota enabled)")
		}
		pingCancel()
	} else {
		log.Println("Redis not configured — using PG advisory locks and in-process quota")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Object storage initialized (type: %s)", cfg.Storage.Type)

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		mailer, err := notify.NewSESMailer(ctx, cfg.Notify)
		if err != nil {
			log.Printf("Warning: SES mailer init failed (%v), alerts disabled", err)
			notifier = notify.NewDisabled()
		} else {
			notifier = notify.New(mailer, cfg.Notify.AdminEmails)
			log.Printf("SES alerting enabled (%d admin recipients)", len(cfg.Notify.AdminEmails))
		}
	} else {
		notifier = notify.NewDisabled()
		log.Println("Alerting disabled")
	}

	lockTTL := cfg.Ingestion.RunLockTTL()
	locks := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, lockTTL)
	}

	newLoader := func() ingest.RecordLoader {
		return reconciler.New(clientRepo, metricsRepo, cfg.CPM.DefaultRate)
	}
	orchestrator := ingest.NewOrchestrator(ingestionRepo, newLoader, locks, notifier)

	if cfg.Surfside.Enabled {
		orchestrator.Register(surfside.NewAdapter(store))
		log.Println("Surfside adapter registered")
	}

	if cfg.Vibe.Enabled {
		var q quota.Quota
		if redisClient != nil {
			q = quota.NewRedisQuota(redisClient, "vibe:create", cfg.Vibe.RateLimitPerHour)
		} else {
			q = quota.NewMemoryQuota(cfg.Vibe.RateLimitPerHour)
		}
		vibeClient := vibe.NewClient(cfg.Vibe, q)
		poller := vibe.NewPoller(vibeClient, cfg.Vibe.PollInterval(), cfg.Vibe.MaxWait())
		go poller.Run(ctx)
		orchestrator.Register(vibe.NewAdapter(vibeClient, poller, clientRepo))
		log.Printf("Vibe adapter registered (quota: %d reports/hour)", cfg.Vibe.RateLimitPerHour)
	}

	generator := report.NewGenerator(reportRepo, metricsRepo, store, notifier, cfg.Reports.Workers)
	log.Printf("Report generator started (%d workers)", cfg.Reports.Workers)

	handlers := api.NewHandlers(clientRepo, metricsRepo, ingestionRepo, reportRepo,
		orchestrator, generator, store, cfg.Upload)
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	cancel()
	generator.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Server stopped")
}
