package app

import (
	"os"
	"strconv"
	"time"

	"github.com/innkeep/authcore/internal/auth/service"
)

// Config carries everything the auth core needs at startup. Every security
// policy constant (TTLs, windows, retained sessions) lives here rather than
// being baked into the services.
type Config struct {
	Issuer string // issuer claim on every signed token

	DatabaseFile   string // path to the SQLite database file
	PepperFile     string // path to the password-hashing pepper file
	SigningKeyFile string // path to the Ed25519 signing key (PKCS8 PEM)

	Env       string // dev, staging, prod
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Token and challenge policy.
	AccessTTL          time.Duration // access token lifetime
	RefreshTTL         time.Duration // refresh token lifetime
	TrustedDeviceTTL   time.Duration // trusted-device token lifetime
	RevalidationWindow time.Duration // max age of the last identity proof
	CodeTTL            time.Duration // one-time code lifetime
	ResetGrantTTL      time.Duration // reset possession token lifetime
	MaxSessions        int           // refresh sessions retained per identity

	// One-time-code issuance throttle: OTPRateCount codes per OTPRateWindow.
	OTPRateCount  int
	OTPRateWindow time.Duration
	OTPRateBurst  int

	ResetLinkBase string // base URL of the password-reset page

	// SMTP transport; an empty host selects the log transport (dev).
	SMTPHost string
	SMTPPort int
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	HousekeepingInterval time.Duration
}

// LoadConfig reads configuration from the environment with sensible dev
// defaults.
func LoadConfig() Config {
	return Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "authcore"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "authcore.db"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		SigningKeyFile: getEnvOrDefault("AUTH_SIGNING_KEY_FILE", "signing.pem"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		AccessTTL:          getEnvDurationOrDefault("AUTH_ACCESS_TTL", service.DefaultAccessTTL),
		RefreshTTL:         getEnvDurationOrDefault("AUTH_REFRESH_TTL", service.DefaultRefreshTTL),
		TrustedDeviceTTL:   getEnvDurationOrDefault("AUTH_TRUSTED_DEVICE_TTL", service.DefaultTrustedDeviceTTL),
		RevalidationWindow: getEnvDurationOrDefault("AUTH_REVALIDATION_WINDOW", service.DefaultRevalidationWindow),
		CodeTTL:            getEnvDurationOrDefault("AUTH_CODE_TTL", service.DefaultCodeTTL),
		ResetGrantTTL:      getEnvDurationOrDefault("AUTH_RESET_GRANT_TTL", service.DefaultGrantTTL),
		MaxSessions:        getEnvIntOrDefault("AUTH_MAX_SESSIONS", service.DefaultMaxSessions),

		OTPRateCount:  getEnvIntOrDefault("AUTH_OTP_RATE_COUNT", 3),
		OTPRateWindow: getEnvDurationOrDefault("AUTH_OTP_RATE_WINDOW", 10*time.Minute),
		OTPRateBurst:  getEnvIntOrDefault("AUTH_OTP_RATE_BURST", 3),

		ResetLinkBase: getEnvOrDefault("AUTH_RESET_LINK_BASE", "http://localhost:3000/reset-password"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPFrom: os.Getenv("SMTP_FROM"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),

		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
