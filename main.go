package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemed-server/internal/advice"
	"telemed-server/internal/config"
	"telemed-server/internal/gateway"
	"telemed-server/internal/handlers"
	"telemed-server/internal/jobs"
	"telemed-server/internal/lock"
	"telemed-server/internal/logger"
	"telemed-server/internal/metrics"
	"telemed-server/internal/models"
	"telemed-server/internal/presence"
	"telemed-server/internal/realtime"
	"telemed-server/internal/routes"
	"telemed-server/internal/services"
	"telemed-server/internal/storage"
	"telemed-server/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telemed-server",
		Short: "Telemedicine appointment and chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			if err := models.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

// bootstrap loads .env, the config and the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	if envErr != nil {
		log.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}
	return cfg, log, nil
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewGormStore(db), nil
}

func openLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info("slot locks are in process; set REDIS_ADDR to share them across instances")
		return lock.NewMemoryLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return lock.NewRedisLocker(client, log), func() { _ = client.Close() }, nil
}

// openPublisher returns the hub itself, or a relay over it when RabbitMQ is configured.
func openPublisher(ctx context.Context, cfg *config.Config, hub *realtime.Hub, log *zap.Logger) (realtime.Publisher, func(), error) {
	if cfg.RabbitMQ.URL == "" {
		return hub, func() {}, nil
	}
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	relay, err := realtime.NewAMQPRelay(conn, cfg.RabbitMQ.Exchange, hub, log)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("event relay stopped", zap.Error(err))
		}
	}()
	return relay, func() {
		_ = relay.Close()
		_ = conn.Close()
	}, nil
}

func openObjects(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.ObjectStore, error) {
	if cfg.Minio.Endpoint == "" {
		log.Info("uploads disabled; set MINIO_ENDPOINT to enable them")
		return nil, nil
	}
	m := cfg.Minio
	objects, err := storage.NewMinioStore(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return objects, nil
}

func runServer() error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	hub := realtime.NewHub(log)
	publisher, closePublisher, err := openPublisher(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	objects, err := openObjects(ctx, cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	tracker := presence.NewTracker(publisher)
	razorpay := gateway.NewRazorpayClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL,
		time.Duration(cfg.Razorpay.TimeoutSeconds)*time.Second)
	gemini := advice.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL, 30*time.Second, log)

	authSvc := services.NewAuthService(st, cfg, log)
	userSvc := services.NewUserService(st, objects, log)
	appointmentSvc := services.NewAppointmentService(st, locker, m, log)
	paymentSvc := services.NewPaymentService(st, appointmentSvc, razorpay, cfg.Razorpay.Currency, m, log)
	chatSvc := services.NewChatService(st, tracker, publisher, m, log)
	reportSvc := services.NewReportService(st, log)

	sweeper := jobs.NewPaymentSweeper(log, paymentSvc, locker, cfg.Payments.SweepSpec,
		time.Duration(cfg.Payments.PendingTTLMinutes)*time.Minute)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, cfg, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authSvc, userSvc, cfg),
		Admin:        handlers.NewAdminHandler(userSvc),
		Profiles:     handlers.NewProfileHandler(userSvc),
		Appointments: handlers.NewAppointmentHandler(appointmentSvc, userSvc),
		Payments:     handlers.NewPaymentHandler(paymentSvc, userSvc),
		Messages:     handlers.NewMessageHandler(chatSvc),
		Reports:      handlers.NewMedicalReportHandler(reportSvc),
		Advice:       handlers.NewAdviceHandler(gemini),
		WebSocket:    handlers.NewWebSocketHandler(hub, chatSvc, tracker, m, cfg.Origin, log),
		Metrics:      m,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("starting server", zap.String("addr", server.Addr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
