package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/baharkarakas/betsave-core/internal/api"
	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/config"
	"github.com/baharkarakas/betsave-core/internal/db"
	"github.com/baharkarakas/betsave-core/internal/logger"
	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/queue"
	"github.com/baharkarakas/betsave-core/internal/repository/postgres"
	"github.com/baharkarakas/betsave-core/internal/services"
	"github.com/baharkarakas/betsave-core/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if cfg.Migrate {
		if err := db.RunMigrations(ctx, dbPool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(dbPool)

	broker := queue.NewBroker(repos.Jobs)
	defer broker.Close()
	eventQ := broker.Queue(queue.EventProcessing, queue.EventPolicy)
	webhookQ := broker.Queue(queue.PartnerWebhook, queue.WebhookPolicy)

	poster := services.NewLedgerPoster(repos.Ledger, cfg.Currency, log)
	intake := services.NewIntakeService(repos.Events, repos.Users, eventQ, log)
	processor := services.NewEventProcessor(repos.Events, poster, webhookQ, cfg.SavingsFraction, log)
	notifier := services.NewWebhookNotifier(repos.Partners, repos.WebhookFailures, cfg.WebhookTimeout, log)
	sweeper := services.NewSweeper(repos.Events, eventQ, cfg.ProcessingLease, log)
	reports := services.NewReportService(repos.Events, repos.Ledger, repos.Wallets, repos.WebhookFailures, eventQ, webhookQ)

	tokens := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	adminAuth := services.NewAdminAuthService(auth.AdminCredentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	}, tokens)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		RateRPS:   cfg.RateRPS,
		Verifier:  auth.NewRequestVerifier(repos.Partners, cfg.PartnerLookupTime, nil),
		Tokens:    tokens,
		Intake:    intake,
		Reports:   reports,
		AdminAuth: adminAuth,
	})

	var bg sync.WaitGroup
	if cfg.RunWorkers {
		eventPool := worker.NewPool(repos.Jobs, processor.Handle, worker.Options{
			Queue:        queue.EventProcessing,
			Workers:      cfg.EventWorkers,
			PollInterval: cfg.PollInterval,
			Lease:        cfg.JobLease,
			OnDead:       processor.OnDead,
			Logger:       log,
		})
		webhookPool := worker.NewPool(repos.Jobs, notifier.Handle, worker.Options{
			Queue:        queue.PartnerWebhook,
			Workers:      cfg.WebhookWorkers,
			PollInterval: cfg.PollInterval,
			Lease:        cfg.JobLease,
			OnDead:       notifier.OnDead,
			Logger:       log,
		})
		eventPool.Start(ctx)
		webhookPool.Start(ctx)

		bg.Add(2)
		go func() {
			defer bg.Done()
			sweeper.Run(ctx, cfg.SweepInterval)
		}()
		go func() {
			defer bg.Done()
			reportDepth(ctx, reports, cfg.PollInterval*15)
		}()
		defer func() {
			eventPool.Wait()
			webhookPool.Wait()
			log.Info("workers stopped")
		}()
		log.Info("workers started", "event_workers", cfg.EventWorkers, "webhook_workers", cfg.WebhookWorkers)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	bg.Wait()
}

// reportDepth refreshes the queue depth gauge.
func reportDepth(ctx context.Context, reports *services.ReportService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			depths, err := reports.QueueDepths(ctx)
			if err != nil {
				slog.Warn("queue depth", "err", err)
				continue
			}
			for name, n := range depths {
				metrics.QueueDepth.WithLabelValues(name).Set(float64(n))
			}
		}
	}
}
