package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/josbro2/AI-Health-Book-AppBot/cmd/mainconfig"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/api/router"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/appointments"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	appconfig "github.com/josbro2/AI-Health-Book-AppBot/internal/config"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/conversation"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/notify"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/observability/metrics"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/webchat"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting healthbook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	cal, err := clinic.NewCalendar(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic timezone", "error", err, "tz", cfg.ClinicTimezone)
		os.Exit(1)
	}

	// Appointments store. A missing DATABASE_URL is a supported mode: the
	// assistant still chats, but bookings report the database as unavailable.
	var (
		pool      *pgxpool.Pool
		archiveDB *sql.DB
	)
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		archiveDB, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open archive connection", "error", err)
			os.Exit(1)
		}
		defer archiveDB.Close()
	} else {
		logger.Warn("DATABASE_URL not set, bookings will be rejected")
	}
	repo := appointments.NewRepository(pool)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	sessions := conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL)

	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	llm, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	var awsNeeded = cfg.EmailProvider == "ses" || (!cfg.UseMemoryQueue && cfg.BookingQueueURL != "")
	var sqsClient *sqs.Client
	var sesClient *sesv2.Client
	if awsNeeded {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
		sesClient = sesv2.NewFromConfig(awsCfg)
	}

	var emailSender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		emailSender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "ses":
		emailSender = notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	}
	notifier := notify.NewService(emailSender, cal, notify.Config{
		ClinicWhatsAppNumber: cfg.ClinicWhatsAppNumber,
		ClinicEmail:          cfg.ClinicEmail,
	}, logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	engine := conversation.NewBookingAssistant(conversation.Deps{
		LLM:       llm,
		Store:     repo,
		Sessions:  sessions,
		Emergency: conversation.NewEmergencyDetector(logger),
		Intent:    conversation.NewKeywordIntentDetector(logger),
		Notifier:  notifier,
		Archive:   conversation.NewTranscriptStore(archiveDB),
		Calendar:  cal,
		Metrics:   m,
		Logger:    logger,
	})

	var dispatcher conversation.Dispatcher
	if cfg.UseMemoryQueue || cfg.BookingQueueURL == "" {
		dispatcher = conversation.NewOrchestrator(engine, conversation.NewMemoryQueue(256), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	} else {
		dispatcher = conversation.NewOrchestrator(engine, conversation.NewSQSQueue(sqsClient, cfg.BookingQueueURL), logger,
			conversation.WithWorkerCount(cfg.WorkerCount))
	}

	extractor := conversation.NewExtractor(llm, cal, logger)
	conversationHandler := conversation.NewHandler(dispatcher, extractor, logger)
	webChatHandler := webchat.NewHandler(engine, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		WebChatHandler:      webChatHandler,
		MetricsHandler:      promhttp.Handler(),
		StoreAvailable:      repo.Available,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
