package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string
	LogFormat   string

	// DatabaseURL empty selects the in-memory store
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// RedisURL empty selects the in-process flat cache
	RedisURL     string
	FlatCacheTTL time.Duration

	JWTSecret  string
	JWTIssuer  string
	TokenTTL   time.Duration
	BcryptCost int

	OwnerBootstrapLength  int
	TenantBootstrapLength int

	LoginRateLimit         int
	BootstrapAuditInterval time.Duration

	CORSAllowedOrigins []string
	OTLPEndpoint       string

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured
	TrustedProxies []string
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  intEnv("SERVER_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    intEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intEnv("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: time.Duration(intEnv("DB_CONN_MAX_LIFETIME_MINUTES", 5)) * time.Minute,

		RedisURL:     os.Getenv("REDIS_URL"),
		FlatCacheTTL: time.Duration(intEnv("FLAT_CACHE_TTL_SECONDS", 30)) * time.Second,

		JWTSecret:  os.Getenv("JWT_SECRET"),
		JWTIssuer:  getEnv("JWT_ISSUER", "societyhub"),
		TokenTTL:   time.Duration(intEnv("TOKEN_TTL_HOURS", 168)) * time.Hour,
		BcryptCost: intEnv("BCRYPT_COST", 10),

		OwnerBootstrapLength:  intEnv("OWNER_BOOTSTRAP_LENGTH", 10),
		TenantBootstrapLength: intEnv("TENANT_BOOTSTRAP_LENGTH", 8),

		LoginRateLimit:         intEnv("LOGIN_RATE_LIMIT", 10),
		BootstrapAuditInterval: time.Duration(intEnv("BOOTSTRAP_AUDIT_INTERVAL_MINUTES", 15)) * time.Minute,

		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TrustedProxies: parseCSVEnv("TRUSTED_PROXIES", nil),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	if c.JWTSecret == "" && c.IsProduction() {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST: %d", c.BcryptCost)
	}
	if c.OwnerBootstrapLength <= 0 || c.TenantBootstrapLength <= 0 {
		return errors.New("bootstrap password lengths must be positive")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL_HOURS must be positive")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single
// address prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
