// Package main is the entry point for the PostVault API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration
// 2. Create the dependencies that talk to the outside world
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...), which keeps it testable without running a binary.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/config"
	"github.com/sakif/postvault/internal/imagehost"
	"github.com/sakif/postvault/internal/mailer"
	"github.com/sakif/postvault/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// .env (if present), then the environment. See internal/config.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the minimum; production usually runs at info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`: it creates parents and succeeds if the
	// directory already exists.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. EXTERNAL SERVICES ===
	// Each integration is optional. Without it the server still starts and
	// the feature degrades: emails are logged, uploads fail with 502, the
	// GitHub routes are not registered.
	deps := server.Deps{}

	if cfg.SMTP.Enabled() {
		deps.Mailer = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		deps.Mailer = mailer.NewLog(logger)
	}

	if cfg.S3.Enabled() {
		s3Host, err := imagehost.NewS3(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
		if err != nil {
			logger.Error("failed to create S3 client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Images = s3Host
	} else {
		logger.Warn("S3_BUCKET not set, image uploads are disabled")
		deps.Images = imagehost.Disabled{}
	}

	// Assign only when enabled: a nil *GitHubProvider stored in the
	// interface would not compare equal to nil.
	if cfg.GitHub.Enabled() {
		deps.GitHub = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	} else {
		logger.Info("GITHUB_CLIENT_ID not set, GitHub login is disabled")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
