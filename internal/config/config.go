// Package config loads the server configuration from the environment.
//
// LOADING ORDER:
//  1. An optional .env file in the working directory (joho/godotenv). Values
//     already present in the real environment are NOT overridden by it.
//  2. Environment variables, with defaults for everything optional.
//  3. Struct-tag validation (go-playground/validator).
//
// Optional integrations are switched off by leaving their variables empty:
// no SMTP_HOST means emails are only logged, no S3_BUCKET means uploads are
// rejected with an upstream error, no GITHUB_CLIENT_ID means the OAuth routes
// are not registered.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full server configuration.
type Config struct {
	Port           int    `validate:"min=1,max=65535"`
	DBPath         string `validate:"required"`
	JWTSecret      string `validate:"required,min=16"`
	AppBaseURL     string `validate:"required,url"`
	CookieSecure   bool
	RequestTimeout time.Duration `validate:"min=0"`
	LogLevel       slog.Level

	// RenderCacheSize bounds the rendered-Markdown LRU. Zero disables it.
	RenderCacheSize int `validate:"min=0"`

	GitHub GitHubConfig
	SMTP   SMTPConfig
	S3     S3Config
}

// GitHubConfig holds the OAuth app credentials. Enabled when ClientID is set.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string `validate:"required_with=ClientID"`
	CallbackURL  string `validate:"omitempty,url"`
}

// SMTPConfig configures the outgoing mail server used for verification and
// password reset emails.
type SMTPConfig struct {
	Host     string
	Port     int `validate:"min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"required_with=Host,omitempty,email"`
}

// S3Config configures the bucket that hosts avatars and post covers.
type S3Config struct {
	Region        string `validate:"required_with=Bucket"`
	Bucket        string
	PublicBaseURL string `validate:"omitempty,url"`
}

// Enabled reports whether GitHub login is configured.
func (c GitHubConfig) Enabled() bool { return c.ClientID != "" }

// Enabled reports whether an SMTP server is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// Enabled reports whether an upload bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Load reads the optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Tests pass a map-backed
// getenv so they never touch the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:           r.int("PORT", 8080),
		DBPath:         r.str("DB_PATH", "data/postvault.db"),
		JWTSecret:      r.str("JWT_SECRET", ""),
		CookieSecure:   r.bool("COOKIE_SECURE", false),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:       r.level("LOG_LEVEL", slog.LevelInfo),

		RenderCacheSize: r.int("RENDER_CACHE_SIZE", 512),
		GitHub: GitHubConfig{
			ClientID:     r.str("GITHUB_CLIENT_ID", ""),
			ClientSecret: r.str("GITHUB_CLIENT_SECRET", ""),
			CallbackURL:  r.str("GITHUB_CALLBACK_URL", ""),
		},
		SMTP: SMTPConfig{
			Host:     r.str("SMTP_HOST", ""),
			Port:     r.int("SMTP_PORT", 587),
			Username: r.str("SMTP_USERNAME", ""),
			Password: r.str("SMTP_PASSWORD", ""),
			From:     r.str("SMTP_FROM", ""),
		},
		S3: S3Config{
			Region:        r.str("S3_REGION", ""),
			Bucket:        r.str("S3_BUCKET", ""),
			PublicBaseURL: r.str("S3_PUBLIC_BASE_URL", ""),
		},
	}
	cfg.AppBaseURL = strings.TrimRight(r.str("APP_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	if cfg.GitHub.Enabled() && cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = cfg.AppBaseURL + "/auth/github/callback"
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// reader collects parse errors so a misconfigured environment reports every
// bad variable at once instead of one per restart.
type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a log level", key, v))
		return def
	}
	return lvl
}
