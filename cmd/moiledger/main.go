package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moiledger/internal/auth"
	"moiledger/internal/config"
	"moiledger/internal/db"
	"moiledger/internal/db/schema"
	httpx "moiledger/internal/http"
	"moiledger/internal/jobs"
	"moiledger/internal/logging"
	"moiledger/internal/mail"
	"moiledger/internal/notify"
)

func main() {
	cfg, cfgErr := config.Load()
	log := logging.New(cfg.LogLevel)
	if cfgErr != nil {
		log.WithError(cfgErr).Fatal("invalid configuration")
	}

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if err := schema.AutoMigrateAndIndexes(gdb); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := httpx.Deps{
		Config: cfg,
		DB:     gdb,
		JWT:    auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		Log:    log,
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.WithError(err).Fatal("connect AMQP")
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	if cfg.SESFromAddress != "" {
		sender, err := mail.NewSESSender(ctx, cfg.SESFromAddress, cfg.AppBaseURL, log)
		if err != nil {
			log.WithError(err).Fatal("configure SES")
		}
		deps.Mail = sender
	}

	r := httpx.NewRouter(deps)

	// worker; claiming relies on postgres row locks
	if cfg.WorkerEnabled && cfg.DatabaseDriver == "postgres" {
		worker := &jobs.Worker{
			ID:     "worker-1",
			Repo:   &jobs.Repo{DB: gdb},
			DB:     gdb,
			Notify: &notify.Service{DB: gdb, Publisher: deps.Publisher, Log: log},
			Log:    log.WithField("component", "worker"),
		}
		go worker.Run(ctx)
	} else {
		log.WithField("driver", cfg.DatabaseDriver).Info("job worker disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
