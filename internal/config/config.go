// Package config provides application configuration loaded from environment
// variables.  Use MustLoad() once in main(); the core receives its
// dependencies (oracle address, database handle) via explicit construction,
// never through hidden lazy globals.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
	AllowedOrigins []string      // CORS / WS origins; empty = allow all (dev)

	// Backoffice is a separate admin-only server.
	BackofficePort       string // default "8081"
	BackofficeAllowedIPs string // comma-separated; empty = allow all (dev)
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret    string        // must be set
	AccessTTL time.Duration // default 12h
}

// OracleConfig holds the resolution trust anchor and creation policy.
// Both are deployment-time configuration, not mutable state.
type OracleConfig struct {
	// SignerAddress is the only key whose attestations finalize markets.
	SignerAddress common.Address
	// AdminAddresses may create markets and credit wallets.
	AdminAddresses []common.Address
	// ChallengeTTL bounds how long a login challenge stays valid.
	ChallengeTTL time.Duration // default 5m
}

// IsAdmin reports whether addr is one of the configured admin identities.
func (o *OracleConfig) IsAdmin(addr common.Address) bool {
	for _, a := range o.AdminAddresses {
		if a == addr {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Oracle OracleConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid.  Returns every validation error encountered, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if (c.Oracle.SignerAddress == common.Address{}) {
		errs = append(errs, errors.New("ORACLE_ADDRESS must be set"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.IsProd() && len(c.Oracle.AdminAddresses) == 0 {
		errs = append(errs, errors.New("ADMIN_ADDRESSES must be set in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment
// variables.  Panics if loading fails — call early in main() so
// misconfiguration is caught at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration.  Intended for use in main().
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),

		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		BackofficeAllowedIPs: os.Getenv("BACKOFFICE_ALLOWED_IPS"),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev.
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "oraclemarket"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret:    getEnv("JWT_SECRET", ""),
		AccessTTL: getDuration("JWT_ACCESS_TTL", 12*time.Hour),
	}

	// ── Oracle ────────────────────────────────────────────────────────────────
	oracleHex := os.Getenv("ORACLE_ADDRESS")
	if oracleHex != "" && !common.IsHexAddress(oracleHex) {
		return nil, fmt.Errorf("ORACLE_ADDRESS: %q is not a valid address", oracleHex)
	}

	var admins []common.Address
	for _, raw := range splitList(os.Getenv("ADMIN_ADDRESSES")) {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("ADMIN_ADDRESSES: %q is not a valid address", raw)
		}
		admins = append(admins, common.HexToAddress(raw))
	}

	cfg.Oracle = OracleConfig{
		SignerAddress:  common.HexToAddress(oracleHex),
		AdminAddresses: admins,
		ChallengeTTL:   getDuration("LOGIN_CHALLENGE_TTL", 5*time.Minute),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparseable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
