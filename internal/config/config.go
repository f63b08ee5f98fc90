// Package config loads and validates all settings at startup.
// Every other package receives typed values. The one exception is the
// environment selector, which re-reads APP_ENV on each call so that the
// active secret is never pinned for the process lifetime.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"
)

// Environment is the deployment environment. There are exactly two.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// ParseEnvironment maps a raw APP_ENV value onto one of the two environments.
// Anything that is not explicitly production is treated as development.
func ParseEnvironment(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

// Config is the fully-parsed application configuration.
type Config struct {
	// Env is the environment selected at startup. See CurrentEnvironment for
	// the per-call selector.
	Env string `yaml:"env" env:"APP_ENV" env-default:"development"`

	Server ServerConfig `yaml:"server"`

	// ── Per-environment credentials ───────────────────────────────────────────
	Production  EnvironmentConfig `yaml:"production"  env-prefix:"PROD_"`
	Development EnvironmentConfig `yaml:"development" env-prefix:"DEV_"`

	Auth      AuthConfig      `yaml:"auth"`
	Email     EmailConfig     `yaml:"email"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"20s"`
	// RequestTimeout bounds every handler. Batch sends can run long, so this
	// is generous.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"90s"`
}

// EnvironmentConfig is the set of credentials that differ per environment.
type EnvironmentConfig struct {
	JWTSecret   string `yaml:"jwt_secret"   env:"JWT_SECRET"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

// AuthConfig holds role settings.
type AuthConfig struct {
	// RolesRaw is the closed set of recognized role tags, comma-separated.
	RolesRaw string `yaml:"roles" env:"AUTH_ROLES" env-default:"ADMIN,ORGANIZER,SPONSORSHIP,MEMBER"`

	// DevDefaultRolesRaw is granted when a lookup yields no roles, but only
	// outside production. Intended for local testing.
	DevDefaultRolesRaw string `yaml:"dev_default_roles" env:"AUTH_DEV_DEFAULT_ROLES"`
}

// EmailConfig holds Resend settings.
type EmailConfig struct {
	ResendAPIKey  string        `yaml:"resend_api_key"  env:"RESEND_API_KEY"`
	ResendBaseURL string        `yaml:"resend_base_url" env:"RESEND_BASE_URL" env-default:"https://api.resend.com"`
	FromAddr      string        `yaml:"from_addr"       env:"EMAIL_FROM_ADDR" env-default:"outreach@example.org"`
	FromName      string        `yaml:"from_name"       env:"EMAIL_FROM_NAME" env-default:"Outreach Team"`
	Timeout       time.Duration `yaml:"timeout"         env:"EMAIL_TIMEOUT"   env-default:"15s"`
}

// DispatchConfig tunes the batch dispatcher.
type DispatchConfig struct {
	MaxBatchSize int           `yaml:"max_batch_size" env:"DISPATCH_MAX_BATCH_SIZE" env-default:"100"`
	MaxRetries   int           `yaml:"max_retries"    env:"DISPATCH_MAX_RETRIES"    env-default:"3"`
	RetryDelay   time.Duration `yaml:"retry_delay"    env:"DISPATCH_RETRY_DELAY"    env-default:"1s"`
	BatchDelay   time.Duration `yaml:"batch_delay"    env:"DISPATCH_BATCH_DELAY"    env-default:"500ms"`
}

// RateLimitConfig limits the public submission forms per client IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"   env:"RATE_LIMIT_RPS"   env-default:"1"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"5"`
	// TrustedProxies lists the CIDRs or IPs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty trusts no one.
	TrustedProxies string `yaml:"trusted_proxies" env:"RATE_LIMIT_TRUSTED_PROXIES"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// ─── ACCESSORS ───────────────────────────────────────────────────────────────

// Environment returns the credentials for env.
func (c *Config) Environment(env Environment) EnvironmentConfig {
	if env == Production {
		return c.Production
	}
	return c.Development
}

// StartupEnvironment is the environment chosen when the config was loaded.
func (c *Config) StartupEnvironment() Environment {
	return ParseEnvironment(c.Env)
}

// CurrentEnvironment re-reads APP_ENV and falls back to the startup value.
func (c *Config) CurrentEnvironment() Environment {
	if v, ok := os.LookupEnv("APP_ENV"); ok && strings.TrimSpace(v) != "" {
		return ParseEnvironment(v)
	}
	return c.StartupEnvironment()
}

// JWTSecret satisfies auth.SecretSource.
func (c *Config) JWTSecret(env Environment) []byte {
	return []byte(c.Environment(env).JWTSecret)
}

// Roles returns the recognized role tags.
func (a AuthConfig) Roles() []string { return SplitList(a.RolesRaw) }

// DevDefaultRoles returns the development-only fallback roles.
func (a AuthConfig) DevDefaultRoles() []string { return SplitList(a.DevDefaultRolesRaw) }

// Origins returns the configured CORS origins.
func (c CORSConfig) Origins() []string { return SplitList(c.AllowedOrigins) }

// Proxies parses TrustedProxies. A bare IP becomes a single-address prefix.
func (c RateLimitConfig) Proxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range SplitList(c.TrustedProxies) {
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_TRUSTED_PROXIES: bad entry %q", raw)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ─── VALIDATION ──────────────────────────────────────────────────────────────

// Validate checks business rules. Load calls it automatically.
func (c *Config) Validate() error {
	var errs []error

	env := c.StartupEnvironment()
	creds := c.Environment(env)
	prefix := "DEV_"
	if env == Production {
		prefix = "PROD_"
	}
	if creds.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("missing required env var: %sJWT_SECRET", prefix))
	} else if len(creds.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET must be at least 32 characters (got %d)", prefix, len(creds.JWTSecret)))
	}
	if creds.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("missing required env var: %sDATABASE_URL", prefix))
	}
	if c.Email.ResendAPIKey == "" {
		errs = append(errs, errors.New("missing required env var: RESEND_API_KEY"))
	}

	if len(c.Auth.Roles()) == 0 {
		errs = append(errs, errors.New("AUTH_ROLES must list at least one role"))
	}

	if c.Dispatch.MaxBatchSize < 1 || c.Dispatch.MaxBatchSize > 100 {
		errs = append(errs, fmt.Errorf("DISPATCH_MAX_BATCH_SIZE must be in [1, 100] (got %d)", c.Dispatch.MaxBatchSize))
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_MAX_RETRIES must be >= 0 (got %d)", c.Dispatch.MaxRetries))
	}
	if c.Dispatch.RetryDelay < 0 || c.Dispatch.BatchDelay < 0 {
		errs = append(errs, errors.New("dispatch delays must not be negative"))
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be > 0 and RATE_LIMIT_BURST >= 1"))
	}
	if _, err := c.RateLimit.Proxies(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
