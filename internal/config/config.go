package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"family-ledger-go/pkg/logger"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	HTTPPort    string
	Env         string
	CORSOrigins []string
	Gateway     GatewayConfig
	Dashboard   DashboardConfig
	Store       StoreConfig
	DB          DBConfig
	AMQP        AMQPConfig
}

type GatewayConfig struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshSkew time.Duration
	Username    string
	Password    string
}

type DashboardConfig struct {
	SnapshotsEnabled bool
	RecentIncomes    int
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

func Load(log logger.Logger) (Config, error) {
	err := loadDotEnv(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	return Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Gateway: GatewayConfig{
			BaseURL:     strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:4000"), "/"),
			Timeout:     getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
			RefreshSkew: getEnvDuration("GATEWAY_REFRESH_SKEW", 30*time.Second),
			Username:    getEnv("GATEWAY_USERNAME", ""),
			Password:    getEnv("GATEWAY_PASSWORD", ""),
		},
		Dashboard: DashboardConfig{
			SnapshotsEnabled: getEnvBool("SNAPSHOTS_ENABLED", true),
			RecentIncomes:    getEnvInt("DASHBOARD_RECENT_INCOMES", 4),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory)),
			SQLitePath: getEnv("SQLITE_PATH", "./data/ledger.db"),
		},
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "family_ledger"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "ledger.lifecycle"),
		},
	}, nil
}

// Validate collects every configuration problem into a single error.
func (c Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.HTTPPort); err != nil {
		problems = append(problems, fmt.Sprintf("invalid HTTP_PORT %q: must be a number", c.HTTPPort))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid HTTP_PORT %d: must be between 1 and 65535", port))
	}

	if parsed, err := url.Parse(c.Gateway.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid GATEWAY_BASE_URL %q", c.Gateway.BaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		problems = append(problems, fmt.Sprintf("invalid GATEWAY_BASE_URL scheme %q: must be http or https", parsed.Scheme))
	}
	if c.Gateway.Timeout <= 0 {
		problems = append(problems, "GATEWAY_TIMEOUT must be positive")
	}
	if (c.Gateway.Username == "") != (c.Gateway.Password == "") {
		problems = append(problems, "GATEWAY_USERNAME and GATEWAY_PASSWORD must be set together")
	}

	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres:
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			problems = append(problems, "SQLITE_PATH cannot be empty when STORE_DRIVER=sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid STORE_DRIVER %q: must be one of memory, postgres, sqlite", c.Store.Driver))
	}

	if c.AMQP.URL != "" {
		if parsed, err := url.Parse(c.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL: %v", err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme %q: must be amqp or amqps", parsed.Scheme))
		}
		if c.AMQP.Exchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
