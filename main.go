package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/engboost/snaplang-api/auth"
	"github.com/engboost/snaplang-api/config"
	"github.com/engboost/snaplang-api/handlers"
	"github.com/engboost/snaplang-api/middleware"
	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	logger := logrus.New()

	// Registered first so it runs after every other deferred cleanup.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// Load .env file if not in production environment
	if err := config.LoadDotEnv(); err != nil {
		logger.Warnf("Warning: .env file not found, environment variables might not be loaded: %v", err)
	}

	env, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	setupLogger(logger, env)

	db, err := config.Connect(env, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer config.Close(db)

	if err := config.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	promoteRootAdmin(db, env.RootAdminEmail, logger)

	tokens, err := auth.NewTokenService(env.AccessTokenSecret, env.AccessTokenLife, env.RefreshTokenSecret, env.RefreshTokenLife)
	if err != nil {
		logger.Fatalf("Failed to create token service: %v", err)
	}

	ctx := context.Background()
	mux := http.NewServeMux()

	assets, err := newAssetStore(ctx, env, mux)
	if err != nil {
		logger.Fatalf("Failed to create asset store: %v", err)
	}

	var mailer services.Mailer = services.LogMailer{Log: logger}
	if env.BrevoAPIKey != "" {
		mailer = services.NewBrevoMailer(env.BrevoAPIKey, env.MailFromAddress, env.MailFromName)
	} else {
		logger.Warn("BREVO_API_KEY not set, emails will only be logged")
	}
	mailQueue := services.NewMailQueue(mailer, logger, 2, 100)

	var redisClient *redis.Client
	if env.RedisURL != "" {
		redisClient, err = services.NewRedisClient(ctx, env.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, translations cached in memory only")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	translator := services.NewCachedTranslator(services.NewGoogleTranslator(env.TranslateURL), redisClient, 1024, 24*time.Hour, logger)

	reconciler := services.NewReconciler(db, logger)
	if err := reconciler.Start(env.ReconcileSchedule); err != nil {
		logger.Fatalf("Failed to start reconciler: %v", err)
	}

	DBHandler := &handlers.DBHandler{
		DB:             db,
		Tokens:         tokens,
		Cookies:        auth.CookieOptions{Domain: env.Domain, Secure: env.CookieSecure, MaxAge: env.CookieMaxAge},
		Assets:         assets,
		Cleaner:        services.NewCleaner(assets, logger, 5),
		Mail:           mailQueue,
		Translator:     translator,
		Detector:       services.NewHTTPDetector(env.InferenceURL),
		Log:            logger,
		RootAdminEmail: env.RootAdminEmail,
		WebsiteDomain:  env.WebsiteDomain,
	}
	guard := middleware.NewGuard(db, tokens, logger)
	DBHandler.Routes(mux, guard)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)
	mux.Handle("GET /metrics", middleware.MetricsHandler(registry))

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   env.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(metrics.Middleware(middleware.RequestLogger(logger)(mux)))

	server := &http.Server{
		Addr:              "0.0.0.0:" + env.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	if err := serveUntilSignal(server, sigChan, logger); err != nil {
		logger.WithError(err).Error("Server failed, shutting down")
		exitCode = 1
	} else {
		logger.Info("Received shutdown signal, stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	reconciler.Stop()
	if err := mailQueue.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Mail queue did not drain")
	}
	logger.Info("Server stopped")
}

// serveUntilSignal runs server until a signal arrives on stop or the listener
// fails. A nil result means a signal was received.
func serveUntilSignal(server *http.Server, stop <-chan os.Signal, logger logrus.FieldLogger) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		return nil
	case err := <-serverErr:
		return err
	}
}

func setupLogger(logger *logrus.Logger, env config.Environment) {
	level, err := logrus.ParseLevel(env.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if env.IsDevelopment {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// newAssetStore builds the configured store. The filesystem store is also
// served from /uploads/.
func newAssetStore(ctx context.Context, env config.Environment, mux *http.ServeMux) (services.AssetStore, error) {
	if strings.EqualFold(env.AssetBackend, "s3") {
		return services.NewS3AssetStore(ctx, services.S3Config{
			Bucket:        env.S3Bucket,
			Region:        env.S3Region,
			Endpoint:      env.S3Endpoint,
			AccessKey:     env.S3AccessKey,
			SecretKey:     env.S3SecretKey,
			UsePathStyle:  env.S3UsePathStyle,
			PublicBaseURL: env.S3PublicURL,
		})
	}

	store, err := services.NewFileSystemAssetStore(env.AssetDir, env.AssetBaseURL)
	if err != nil {
		return nil, err
	}
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Root()))))
	return store, nil
}

// promoteRootAdmin makes sure the configured root admin, once registered,
// holds the ADMIN role.
func promoteRootAdmin(db *gorm.DB, email string, logger logrus.FieldLogger) {
	if email == "" {
		return
	}
	res := db.Model(&models.User{}).Where("email = ? AND role <> ?", strings.ToLower(email), models.RoleAdmin).Update("role", models.RoleAdmin)
	if res.Error != nil {
		logger.WithError(res.Error).Warn("Failed to promote root admin")
		return
	}
	if res.RowsAffected > 0 {
		logger.WithField("email", email).Info("Promoted root admin")
	}
}
