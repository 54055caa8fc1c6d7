package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Lockout  LockoutConfig
	Alerts   AlertsConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	SQLitePath        string
}

type ServerConfig struct {
	Port                   string
	Env                    string
	LogLevel               string
	AllowedOrigins         []string
	TrustedProxies         []string
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
	RequestTimeout         time.Duration
	CheckRequestsPerMinute int
}

// LockoutConfig drives the lockout policy and the store access around it
type LockoutConfig struct {
	MaxAttempts      int
	Window           time.Duration
	LockDuration     time.Duration
	StoreTimeout     time.Duration
	AttemptRetention time.Duration
	CleanupInterval  time.Duration
	AlertTimeout     time.Duration
}

// AlertsConfig configures where lockout alerts are forwarded besides the store.
// Empty values disable the corresponding notifier.
type AlertsConfig struct {
	SESRegion   string
	FromAddress string
	ToAddress   string
	NATSURL     string
	NATSSubject string
}

// AdminConfig configures the administrative API. An empty secret disables it.
type AdminConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:            strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			SQLitePath:        getEnv("DB_SQLITE_PATH", "loginguard.db"),
		},
		Server: ServerConfig{
			Port:                   getEnv("PORT", "8080"),
			Env:                    env,
			LogLevel:               getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:         parseAllowedOrigins(env),
			TrustedProxies:         splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:            getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:           getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:            getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:         getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			CheckRequestsPerMinute: getEnvAsInt("CHECK_REQUESTS_PER_MINUTE", 30),
		},
		Lockout: LockoutConfig{
			MaxAttempts:      getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:           getEnvAsDuration("LOCKOUT_WINDOW", 15*time.Minute),
			LockDuration:     getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			StoreTimeout:     getEnvAsDuration("LOCKOUT_STORE_TIMEOUT", 5*time.Second),
			AttemptRetention: getEnvAsDuration("LOCKOUT_ATTEMPT_RETENTION", 24*time.Hour),
			CleanupInterval:  getEnvAsDuration("LOCKOUT_CLEANUP_INTERVAL", 1*time.Hour),
			AlertTimeout:     getEnvAsDuration("ALERT_TIMEOUT", 10*time.Second),
		},
		Alerts: AlertsConfig{
			SESRegion:   getEnv("ALERT_SES_REGION", ""),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			ToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
			NATSURL:     getEnv("ALERT_NATS_URL", ""),
			NATSSubject: getEnv("ALERT_NATS_SUBJECT", "security.lockouts"),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
	}

	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverSQLite:
		if cfg.Database.SQLitePath == "" {
			return nil, fmt.Errorf("DB_SQLITE_PATH is required")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	if err := validateLockout(&cfg.Lockout); err != nil {
		return nil, err
	}

	if cfg.Admin.JWTSecret != "" {
		if err := validateJWTSecret(cfg.Admin.JWTSecret, env); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func validateLockout(c *LockoutConfig) error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1 (got %d)", c.MaxAttempts)
	}
	if c.Window <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW must be positive")
	}
	if c.LockDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}
	if c.AttemptRetention < c.Window {
		return fmt.Errorf("LOCKOUT_ATTEMPT_RETENTION must not be shorter than LOCKOUT_WINDOW")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the admin JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("ADMIN_JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: the marketing site dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
