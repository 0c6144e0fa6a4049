package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herald/internal/auth"
	"herald/internal/config"
	"herald/internal/db"
	"herald/internal/directory"
	"herald/internal/events"
	"herald/internal/handlers"
	"herald/internal/middleware"
	"herald/internal/notify"
	"herald/internal/retry"
	"herald/internal/runner"
	"herald/internal/schedule"
	"herald/internal/template"
)

func main() {
	cfg := config.Load()

	if err := db.Init(cfg.DBPath); err != nil {
		log.Fatalf("database init: %v", err)
	}
	defer db.DB.Close()

	migrations := []func() error{
		func() error { return auth.Migrate(db.DB) },
		func() error { return directory.Migrate(db.DB) },
		func() error { return template.Migrate(db.DB) },
		func() error { return schedule.Migrate(db.DB) },
		func() error { return retry.Migrate(db.DB) },
		func() error { return notify.Migrate(db.DB) },
		func() error { return runner.Migrate(db.DB) },
	}
	for _, migrate := range migrations {
		if err := migrate(); err != nil {
			log.Fatalf("migration: %v", err)
		}
	}

	auth.CreateDefaultAdmin(db.DB, cfg.AdminUser, cfg.AdminPass)
	auth.CleanupExpiredSessions(db.DB)

	bus := events.NewBus()

	hub := notify.NewHub()
	hub.Attach(bus)

	audit := notify.NewAuditBatcher(db.DB)
	audit.Start()
	defer audit.Stop()

	senders := notify.Senders{Push: notify.ShoutrrrSender{}}
	if cfg.SMTPHost != "" {
		senders.Email = notify.NewGomailSender(cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	if cfg.SMSURL != "" {
		senders.SMS = notify.ShoutrrrSMSSender{URLTemplate: cfg.SMSURL}
	}

	dispatcher := notify.NewDispatcher(db.DB, bus, senders, audit)
	dispatcher.SetRetryPolicy(retry.Config{
		MaxRetries:        cfg.RetryMax,
		RetryDelayMinutes: cfg.RetryDelayMinutes,
	})
	dispatcher.SetDNDFallback(cfg.DNDRetryFallback)
	dispatcher.SetPushFallback(cfg.PushURL)

	sweeper := runner.New(db.DB, dispatcher, bus)
	sweeper.Start(cfg.SweepInterval)
	defer sweeper.Stop()

	handlers.Run = sweeper
	handlers.Dispatch = dispatcher

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, cfg, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.Logging(middleware.CORS(mux)),
	}

	go func() {
		log.Printf("herald listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
