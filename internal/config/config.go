package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	StoreDriver               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Razorpay                  RazorpayConfig
	Gemini                    GeminiConfig
	Redis                     RedisConfig
	RabbitMQ                  RabbitMQConfig
	Minio                     MinioConfig
	Payments                  PaymentConfig
	AdviceRatePerMinute       int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RazorpayConfig holds payment gateway credentials
type RazorpayConfig struct {
	KeyID          string
	KeySecret      string
	Currency       string
	BaseURL        string
	TimeoutSeconds int
}

// GeminiConfig holds the advice model settings
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RedisConfig holds the slot lock backend. An empty Addr keeps locks in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig holds the cross-instance event relay. An empty URL disables it.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// MinioConfig holds object storage for uploads. An empty Endpoint disables uploads.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// PaymentConfig controls the stale order sweeper
type PaymentConfig struct {
	PendingTTLMinutes int
	SweepSpec         string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "telemed"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	razorpayTimeout, err := strconv.Atoi(getEnv("RAZORPAY_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RAZORPAY_TIMEOUT_SECONDS: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	minioSSL, err := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}

	pendingTTL, err := strconv.Atoi(getEnv("PAYMENT_PENDING_TTL_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_PENDING_TTL_MINUTES: %w", err)
	}

	adviceRate, err := strconv.Atoi(getEnv("ADVICE_RATE_PER_MINUTE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADVICE_RATE_PER_MINUTE: %w", err)
	}

	storeDriver := getEnv("STORE_DRIVER", "mysql")
	if storeDriver != "mysql" && storeDriver != "memory" {
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", storeDriver)
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("NODE_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		StoreDriver:               storeDriver,
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Razorpay: RazorpayConfig{
			KeyID:          getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:      getEnv("RAZORPAY_KEY_SECRET", ""),
			Currency:       getEnv("RAZORPAY_CURRENCY", "INR"),
			BaseURL:        getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
			TimeoutSeconds: razorpayTimeout,
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "telemed.events"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "telemed-uploads"),
			UseSSL:    minioSSL,
		},
		Payments: PaymentConfig{
			PendingTTLMinutes: pendingTTL,
			SweepSpec:         getEnv("PAYMENT_SWEEP_SPEC", "@every 5m"),
		},
		AdviceRatePerMinute: adviceRate,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
