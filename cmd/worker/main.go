package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/notify"
	"github.com/ignite/paidmedia-monitor/internal/pkg/distlock"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
	"github.com/ignite/paidmedia-monitor/internal/reconciler"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
	"github.com/ignite/paidmedia-monitor/internal/storage"
	"github.com/ignite/paidmedia-monitor/internal/surfside"
	"github.com/ignite/paidmedia-monitor/internal/vibe"
)

func main() {
	replay := flag.String("replay", "", "run one ingestion cycle for this date (YYYY-MM-DD) and exit")
	flag.Parse()

	log.Println("Starting paid media ingestion worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v — falling back to PG advisory locks", err)
			redisClient.Close()
			redisClient = nil
		}
		pingCancel()
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		mailer, err := notify.NewSESMailer(ctx, cfg.Notify)
		if err != nil {
			log.Printf("Warning: SES mailer init failed (%v), alerts disabled", err)
			notifier = notify.NewDisabled()
		} else {
			notifier = notify.New(mailer, cfg.Notify.AdminEmails)
		}
	} else {
		notifier = notify.NewDisabled()
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

	retention := time.Duration(cfg.Ingestion.StagingRetentionDays) * 24 * time.Hour
	scheduler := ingest.NewScheduler(orchestrator, clientRepo, ingestionRepo, cfg.Ingestion.ScheduleHourUTC, retention)

	if *replay != "" {
		date, err := ingest.ParseDate(*replay)
		if err != nil {
			log.Fatalf("Invalid --replay date: %v", err)
		}
		log.Printf("Replaying ingestion cycle for %s", date.Format("2006-01-02"))
		scheduler.RunCycle(ctx, date)
		log.Println("Replay complete")
		return
	}

	scheduler.Start()

	monitor := ingest.NewMonitor(ingestionRepo, notifier,
		time.Duration(cfg.Ingestion.StuckRunMinutes)*time.Minute)
	monitor.Start()

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	monitor.Stop()
	scheduler.Stop()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Worker stopped")
}
