package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"domaintrust/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type OAuthConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RedirectURI  string `json:"redirect_uri"`
}

// VerificationConfig holds the tunables of the trust pipeline.
type VerificationConfig struct {
	// MinDomainAgeDays rejects domains registered more recently than
	// this many days ago. Observed registrar abuse windows are 7-30
	// days; 7 is the default.
	MinDomainAgeDays float64 `json:"min_domain_age_days"`

	// MinAccountAgeDays rejects webmail accounts whose oldest message
	// is younger than this many days.
	MinAccountAgeDays float64 `json:"min_account_age_days"`

	SMTPProbePort    int           `json:"smtp_probe_port"`
	SMTPProbeTimeout time.Duration `json:"smtp_probe_timeout"`
	WhoisTimeout     time.Duration `json:"whois_timeout"`

	// ProviderDomains lists the delegated-identity providers whose
	// accounts require the account-age check (authorization code must
	// be supplied for these).
	ProviderDomains []string `json:"provider_domains"`
}

type Config struct {
	Environment     string             `json:"environment"`
	Google          OAuthConfig        `json:"google"`
	ServerPort      string             `json:"server_port"`
	DBHost          string             `json:"db_host"`
	DBPort          string             `json:"db_port"`
	DBUser          string             `json:"db_user"`
	DBPassword      string             `json:"-"`
	DBName          string             `json:"db_name"`
	DBSSLMode       string             `json:"db_ssl_mode"`
	DBMaxIdleConns  int                `json:"db_max_idle_conns"`
	DBMaxOpenConns  int                `json:"db_max_open_conns"`
	JWTSecret       string             `json:"-"`
	SentryDSN       string             `json:"-"`
	Redis           RedisConfig        `json:"redis"`
	RateLimitVerify int                `json:"rate_limit_verify"`
	Verification    VerificationConfig `json:"verification"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Google: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		},
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "domaintrust"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		RateLimitVerify: getEnvAsInt("RATE_LIMIT_VERIFY", 30),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Verification: VerificationConfig{
			MinDomainAgeDays:  getEnvAsFloat("MIN_DOMAIN_AGE_DAYS", 7),
			MinAccountAgeDays: getEnvAsFloat("MIN_ACCOUNT_AGE_DAYS", 1),
			SMTPProbePort:     getEnvAsInt("SMTP_PROBE_PORT", 25),
			SMTPProbeTimeout:  time.Duration(getEnvAsInt("SMTP_PROBE_TIMEOUT_SECONDS", 5)) * time.Second,
			WhoisTimeout:      time.Duration(getEnvAsInt("WHOIS_TIMEOUT_SECONDS", 10)) * time.Second,
			ProviderDomains:   splitAndTrim(getEnv("PROVIDER_DOMAINS", "gmail.com")),
		},
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if AppConfig.Environment == "production" && len(AppConfig.Verification.ProviderDomains) > 0 {
		if AppConfig.Google.ClientID == "" || AppConfig.Google.ClientSecret == "" {
			return fmt.Errorf("Google OAuth credentials are required when provider domains are configured")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value float64
	_, err := fmt.Sscanf(valueStr, "%g", &value)
	if err != nil {
		return fallback
	}
	return value
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Min domain age: %.0f days, min account age: %.0f days",
		AppConfig.Verification.MinDomainAgeDays,
		AppConfig.Verification.MinAccountAgeDays)
	log.Printf("Provider domains: %s", strings.Join(AppConfig.Verification.ProviderDomains, ", "))
	log.Printf("Google OAuth configured: %t", AppConfig.Google.ClientID != "")
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DomainEntry{},
	)
}
