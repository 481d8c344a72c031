package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	LogLevel       string
	AllowedOrigins []string
	SecureCookies  bool

	FirebaseDatabaseURL     string
	FirebaseCredentialsPath string

	DatabaseURL      string
	DatabaseHost     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePort     string

	RedisURL    string
	RedisPrefix string

	JWTSecret      string
	TokenTTL       time.Duration
	ResetTTL       time.Duration
	ResetURL       string
	MaxAttempts    int
	AttemptWindow  time.Duration

	SendGridAPIKey string
	MailFromName   string
	MailFromEmail  string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	PlanExpirySchedule   string
	TutorReindexSchedule string
	JobTimeout           time.Duration
	SeedDemoData         bool
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		FirebaseDatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),
		FirebaseCredentialsPath: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseHost:     os.Getenv("DB_HOST"),
		DatabaseUser:     os.Getenv("DB_USER"),
		DatabasePassword: os.Getenv("DB_PASSWORD"),
		DatabaseName:     os.Getenv("DB_NAME"),
		DatabasePort:     getEnv("DB_PORT", "5432"),

		RedisURL:    os.Getenv("REDIS_URL"),
		RedisPrefix: getEnv("REDIS_PREFIX", "tutorme"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		ResetURL:  getEnv("RESET_URL", "http://localhost:3000/forgot-password"),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFromName:   getEnv("MAIL_FROM_NAME", "TutorMe"),
		MailFromEmail:  getEnv("MAIL_FROM_EMAIL", "no-reply@tutorme.app"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "tutorme"),

		PlanExpirySchedule:   getEnv("PLAN_EXPIRY_SCHEDULE", "@hourly"),
		TutorReindexSchedule: getEnv("TUTOR_REINDEX_SCHEDULE", "@daily"),
	}

	if cfg.MeiliSearchHost != "" && !strings.HasPrefix(cfg.MeiliSearchHost, "http") {
		cfg.MeiliSearchHost = "http://" + cfg.MeiliSearchHost + ":7700"
	}

	var err error
	cfg.TokenTTL, err = parseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.ResetTTL, err = parseDuration(getEnv("RESET_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_TTL: %w", err)
	}
	cfg.AttemptWindow, err = parseDuration(getEnv("LOGIN_ATTEMPT_WINDOW", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_ATTEMPT_WINDOW: %w", err)
	}
	cfg.JobTimeout, err = parseDuration(getEnv("JOB_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	cfg.MaxAttempts, err = strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS: %w", err)
	}
	cfg.SecureCookies, err = strconv.ParseBool(getEnv("SECURE_COOKIES", strconv.FormatBool(cfg.IsProduction())))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURE_COOKIES: %w", err)
	}
	cfg.SeedDemoData, err = strconv.ParseBool(getEnv("SEED_DEMO_DATA", strconv.FormatBool(cfg.AppEnv == "development")))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO_DATA: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "development-secret"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UseFirebase reports whether profile data lives in Firebase rather than the
// in-process store.
func (c *Config) UseFirebase() bool {
	return c.FirebaseDatabaseURL != ""
}

// UseDatabase reports whether accounts are persisted in Postgres.
func (c *Config) UseDatabase() bool {
	return c.DatabaseURL != "" || c.DatabaseHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
