package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hvac_triage/backend/internal/ai"
	"github.com/hvac_triage/backend/internal/config"
	"github.com/hvac_triage/backend/internal/db"
	httpapi "github.com/hvac_triage/backend/internal/http"
	"github.com/hvac_triage/backend/internal/service"
	"github.com/hvac_triage/backend/internal/sms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "hvac-triage").Logger()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var judge ai.Judge
	if cfg.AIURL == "" {
		judge = ai.MockJudge{}
		logger.Info().Msg("using mock AI judge")
	} else {
		judge = ai.HTTPJudge{BaseURL: cfg.AIURL, Model: cfg.AIModel, APIKey: cfg.AIAPIKey}
	}

	var sender sms.Sender
	if cfg.TwilioAccountSID == "" {
		sender = sms.LogSender{Logger: logger}
		logger.Info().Msg("using log-only SMS sender")
	} else {
		sender = sms.TwilioSender{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
		}
	}

	classifier := &service.Classifier{Judge: judge, Logger: logger}
	dispatcher := &service.Dispatcher{Store: store, Sender: sender, Logger: logger, Timeout: cfg.EscalationTimeout}
	escalator := &service.Escalator{Store: store, Sender: sender, Dispatcher: dispatcher, Logger: logger, Policy: cfg.DispatchPolicy}
	reports := &service.ReportService{Store: store, Logger: logger}

	go escalator.Run(ctx, cfg.SweepInterval)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ReportCron, func() {
		day := time.Now().UTC().AddDate(0, 0, -1)
		businesses, err := store.ListBusinesses(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("report run: failed to list businesses")
			return
		}
		for _, b := range businesses {
			if _, err := reports.GenerateDaily(ctx, b.ID, day); err != nil {
				logger.Error().Err(err).Str("business_id", b.ID).Msg("report run failed")
			}
		}
	})
	if err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.ReportCron).Msg("invalid report schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := httpapi.Router(cfg, store, classifier, dispatcher, escalator, reports, sender, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
