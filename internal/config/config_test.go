package config

import (
    "strings"
    "testing"
    "time"
)

func setRequired(t *testing.T) {
    t.Helper()
    t.Setenv("JWT_SECRET", "secret")
    t.Setenv("DB_USER", "root")
    t.Setenv("DB_HOST", "127.0.0.1")
    t.Setenv("DB_NAME", "proctor")
}

func TestLoad_Defaults(t *testing.T) {
    setRequired(t)

    cfg, err := Load()
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if cfg.SessionTTL != 7*24*time.Hour {
        t.Errorf("SessionTTL = %v, want 7 days", cfg.SessionTTL)
    }
    if cfg.MaxViolations != 3 {
        t.Errorf("MaxViolations = %d, want 3", cfg.MaxViolations)
    }
    if cfg.SweepInterval != time.Hour {
        t.Errorf("SweepInterval = %v, want 1h", cfg.SweepInterval)
    }
    if cfg.StoreDriver != DriverMySQL || cfg.DBPort != "3306" {
        t.Errorf("store = %s port %s", cfg.StoreDriver, cfg.DBPort)
    }
    if cfg.RabbitEnabled {
        t.Error("RabbitEnabled should default to false")
    }
    if cfg.Cache.KeyStrategy != "user_route_query" || !cfg.Cache.Methods["GET"] {
        t.Errorf("cache = %+v", cfg.Cache)
    }
}

func TestLoad_MissingRequired(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_HOST", "")
    t.Setenv("DB_NAME", "")

    _, err := Load()
    if err == nil {
        t.Fatal("expected an error")
    }
    for _, key := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_NAME"} {
        if !strings.Contains(err.Error(), key) {
            t.Errorf("error %q should mention %s", err, key)
        }
    }
}

func TestLoad_MemoryDriverSkipsDatabase(t *testing.T) {
    t.Setenv("JWT_SECRET", "secret")
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_HOST", "")
    t.Setenv("DB_NAME", "")

    if _, err := Load(); err != nil {
        t.Fatalf("Load: %v", err)
    }
}

func TestLoad_Validation(t *testing.T) {
    tests := []struct {
        key, val, want string
    }{
        {"MAX_VIOLATIONS", "0", "MAX_VIOLATIONS"},
        {"SESSION_TTL_DAYS", "0", "SESSION_TTL_DAYS"},
        {"BCRYPT_COST", "ten", "BCRYPT_COST"},
        {"SESSION_SWEEP_INTERVAL", "soon", "SESSION_SWEEP_INTERVAL"},
        {"STORE_DRIVER", "sqlite", "STORE_DRIVER"},
    }
    for _, tt := range tests {
        t.Run(tt.key, func(t *testing.T) {
            setRequired(t)
            t.Setenv(tt.key, tt.val)
            _, err := Load()
            if err == nil || !strings.Contains(err.Error(), tt.want) {
                t.Fatalf("err = %v, want mention of %s", err, tt.want)
            }
        })
    }
}

func TestLoad_RabbitURLFallback(t *testing.T) {
    setRequired(t)
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://user:pw@broker:5672/")

    cfg, err := Load()
    if err != nil {
        t.Fatal(err)
    }
    if cfg.RabbitURL != "amqp://user:pw@broker:5672/" {
        t.Errorf("RabbitURL = %s", cfg.RabbitURL)
    }
}
