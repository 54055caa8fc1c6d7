package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_LockoutDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.MaxAttempts != 5 {
		t.Errorf("MaxAttempts: got %d, want 5", cfg.Lockout.MaxAttempts)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"Window", cfg.Lockout.Window, 15 * time.Minute},
		{"LockDuration", cfg.Lockout.LockDuration, 30 * time.Minute},
		{"StoreTimeout", cfg.Lockout.StoreTimeout, 5 * time.Second},
		{"AttemptRetention", cfg.Lockout.AttemptRetention, 24 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Invalid duration should fall back to default
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestLoad_PostgresRequiresPassword(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing DB_PASSWORD")
	}
}

func TestLoad_SQLiteSkipsPassword(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_SQLITE_PATH", "/tmp/guard.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Database.SQLitePath != "/tmp/guard.db" {
		t.Errorf("SQLitePath: got %q", cfg.Database.SQLitePath)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for unsupported driver")
	}
}

func TestLoad_InvalidLockoutSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero attempts", "LOCKOUT_MAX_ATTEMPTS", "0"},
		{"zero window", "LOCKOUT_WINDOW", "0s"},
		{"zero duration", "LOCKOUT_DURATION", "0s"},
		{"retention shorter than window", "LOCKOUT_ATTEMPT_RETENTION", "1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil, want error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_AdminSecretValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_JWT_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for short admin secret")
	}

	t.Setenv("ADMIN_JWT_SECRET", "a-perfectly-long-admin-secret-value")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Admin.JWTSecret == "" {
		t.Error("JWTSecret should be populated")
	}
}

func TestLoad_TrustedProxiesParsed(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1/32,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"10.0.0.0/8", "127.0.0.1/32"}
	if len(cfg.Server.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies: got %v, want %v", cfg.Server.TrustedProxies, want)
	}
	for i := range want {
		if cfg.Server.TrustedProxies[i] != want[i] {
			t.Errorf("TrustedProxies[%d]: got %q, want %q", i, cfg.Server.TrustedProxies[i], want[i])
		}
	}
}
