package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB     DatabaseConfig
	Redis  RedisConfig
	BRI    BRIConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// BRIConfig is a complete credential bundle for one BRI integration. The
// values loaded here are the global default bundle; the tenant resolver
// builds the same shape from bri_clients rows for tenants that carry
// their own record.
type BRIConfig struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	PrivateKeyPEM  string
	PrivateKeyPath string
	PublicKeyPEM   string
	PublicKeyPath  string

	QRIS  QRISConfig
	Briva BrivaConfig
}

// QRISConfig contains the QRIS product parameters of a bundle.
type QRISConfig struct {
	PartnerID     string
	ChannelID     string
	MerchantID    string
	TerminalID    string
	PublicKeyPEM  string
	PublicKeyPath string
	Timeout       time.Duration
}

// BrivaConfig contains the BRIVA (virtual account) product parameters of
// a bundle.
type BrivaConfig struct {
	PartnerServiceID string
	PartnerID        string
	ChannelID        string
	PublicKeyPEM     string
	PublicKeyPath    string
	Timeout          time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	ExpiryInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// BRI default bundle. Single-tenant deployments run on this alone;
	// multi-tenant deployments use it as the fallback.
	var err error
	cfg.BRI = BRIConfig{
		BaseURL:        getEnv("BRI_BASE_URL", "https://sandbox.partner.api.bri.co.id"),
		ClientID:       getEnv("BRI_CLIENT_ID", ""),
		ClientSecret:   getEnv("BRI_CLIENT_SECRET", ""),
		PrivateKeyPEM:  getEnv("BRI_PRIVATE_KEY", ""),
		PrivateKeyPath: getEnv("BRI_PRIVATE_KEY_PATH", "keys/bri/private.pem"),
		PublicKeyPEM:   getEnv("BRI_PUBLIC_KEY", ""),
		PublicKeyPath:  getEnv("BRI_PUBLIC_KEY_PATH", "keys/bri/public.pem"),
	}
	cfg.BRI.QRIS = QRISConfig{
		PartnerID:     getEnv("BRI_QRIS_PARTNER_ID", ""),
		ChannelID:     getEnv("BRI_QRIS_CHANNEL_ID", "95221"),
		MerchantID:    getEnv("BRI_QRIS_MERCHANT_ID", ""),
		TerminalID:    getEnv("BRI_QRIS_TERMINAL_ID", ""),
		PublicKeyPEM:  getEnv("BRI_QRIS_PUBLIC_KEY", ""),
		PublicKeyPath: getEnv("BRI_QRIS_PUBLIC_KEY_PATH", ""),
	}
	if cfg.BRI.QRIS.Timeout, err = parseDurationEnv("BRI_QRIS_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid BRI_QRIS_TIMEOUT: %w", err)
	}
	cfg.BRI.Briva = BrivaConfig{
		PartnerServiceID: getEnv("BRI_BRIVA_PARTNER_SERVICE_ID", ""),
		PartnerID:        getEnv("BRI_BRIVA_PARTNER_ID", ""),
		ChannelID:        getEnv("BRI_BRIVA_CHANNEL_ID", ""),
		PublicKeyPEM:     getEnv("BRI_BRIVA_PUBLIC_KEY", ""),
		PublicKeyPath:    getEnv("BRI_BRIVA_PUBLIC_KEY_PATH", ""),
	}
	if cfg.BRI.Briva.Timeout, err = parseDurationEnv("BRI_BRIVA_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid BRI_BRIVA_TIMEOUT: %w", err)
	}

	// Workers (durations)
	if cfg.Worker.ExpiryInterval, err = parseDurationEnv("EXPIRY_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid EXPIRY_INTERVAL: %w", err)
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
