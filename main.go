package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/database"
	"pulsetrack/api/engine"
	"pulsetrack/api/handlers"
	"pulsetrack/api/middleware"
	"pulsetrack/api/models"
	"pulsetrack/api/notify"
	"pulsetrack/api/store"
)

// sessionTTL is the inactivity window after which a visitor session row is
// hard-deleted by the janitor.
const sessionTTL = 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// --- Databases ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL")
	}
	defer dbClient.Close()

	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ClickHouse")
	}
	defer chClient.Close()

	// --- Stores ---
	visitorStore := store.NewVisitorStore(dbClient.DB)
	activityStore := store.NewActivityStore(chClient)
	alertStore := store.NewAlertStore(dbClient.DB)
	funnelStore := store.NewFunnelStore(dbClient.DB)
	settingsStore := store.NewSettingsStore(dbClient.DB)
	userStore := store.NewUserStore(dbClient.DB)

	// --- Engines ---
	notifier := buildNotifier(settingsStore)
	tracker := engine.NewTracker(visitorStore, activityStore, uuid.NewString)
	detector := engine.NewDetector(visitorStore, alertStore, settingsStore, notifier, uuid.NewString)
	evaluator := engine.NewEvaluator(funnelStore, visitorStore, activityStore, uuid.NewString)
	aggregator := engine.NewAggregator(activityStore, visitorStore)

	// --- Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore)
	trackingHandlers := handlers.NewTrackingHandlers(tracker, visitorStore)
	activityHandlers := handlers.NewActivityHandlers(activityStore)
	anomalyHandlers := handlers.NewAnomalyHandlers(detector)
	funnelHandlers := handlers.NewFunnelHandlers(evaluator)
	performanceHandlers := handlers.NewPerformanceHandlers(aggregator)
	exportHandlers := handlers.NewExportHandlers(visitorStore, activityStore)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Public instrumentation endpoints: heartbeats, activity ingestion
		// and the social-proof feed.
		tracking := api.Group("/tracking")
		{
			tracking.POST("/visitors", trackingHandlers.PostVisitor)
			tracking.POST("/activities", activityHandlers.PostActivity)
			tracking.GET("/activities", middleware.OptionalAuth(), activityHandlers.GetActivities)
		}

		// Dashboard read side.
		protected := api.Group("/tracking")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/visitors", trackingHandlers.GetVisitors)
			protected.GET("/anomalies", anomalyHandlers.GetAnomalies)
			protected.POST("/anomalies", anomalyHandlers.PostAnomalies)
			protected.GET("/funnel", funnelHandlers.GetFunnel)
			protected.GET("/performance", performanceHandlers.GetPerformance)
			protected.GET("/export", exportHandlers.GetExport)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go sessionJanitor(janitorCtx, visitorStore)

	go func() {
		log.Info().Str("port", port).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}

// buildNotifier wires the Telegram sink from settings, falling back to env
// vars and then to a no-op when unconfigured.
func buildNotifier(settings *store.SettingsStore) notify.Notifier {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, _, _ := settings.Get(ctx, models.SettingTelegramBotToken)
	chatID, _, _ := settings.Get(ctx, models.SettingTelegramChatID)
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if chatID == "" {
		chatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || chatID == "" {
		log.Warn().Msg("telegram notifier not configured, alerts will not be delivered")
		return notify.Noop{}
	}
	return notify.NewTelegramNotifier(token, chatID)
}

// sessionJanitor enforces the session TTL: visitor rows idle past the
// window are hard-deleted on an hourly tick. This is storage housekeeping,
// not an application delete path.
func sessionJanitor(ctx context.Context, visitors *store.VisitorStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			purged, err := visitors.PurgeExpired(purgeCtx, time.Now().Add(-sessionTTL))
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("session purge failed")
			} else if purged > 0 {
				log.Info().Int64("purged", purged).Msg("expired visitor sessions removed")
			}
		}
	}
}
