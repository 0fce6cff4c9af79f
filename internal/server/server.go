// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the database, services,
// handlers, middleware and routes, and starts and stops the HTTP server.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the configuration and the external collaborators (mailer,
// image host, GitHub provider) and passes them to New. New creates:
//
//	sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place instead of being scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/postvault/internal/auth"
	"github.com/sakif/postvault/internal/config"
	"github.com/sakif/postvault/internal/content"
	"github.com/sakif/postvault/internal/handler"
	"github.com/sakif/postvault/internal/middleware"
	sqliteRepo "github.com/sakif/postvault/internal/repository/sqlite"
	"github.com/sakif/postvault/internal/service"
)

// Deps are the collaborators that talk to the outside world. main picks
// the real or the local implementation of each from the configuration.
type Deps struct {
	Mailer service.Mailer
	Images service.ImageHost
	GitHub service.OAuthProvider // nil disables GitHub login

	// Passwords overrides the bcrypt cost. nil means production settings.
	Passwords *auth.PasswordService
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the last
// in-flight request has finished, which checkpoints the WAL and releases
// the file lock.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every layer.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(deps); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router. Tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                         → liveness + database ping
//
//	       /auth/...                        → signup, login, sessions, GitHub (public)
//
//	GET    /feed                            → global feed           (optional auth)
//	GET    /feed.rss                        → RSS of newest posts   (public)
//	GET    /posts/{postId}                  → post detail           (optional auth)
//	GET    /users/{id}                      → public profile        (optional auth)
//	GET    /users/{id}/posts                → author's posts        (optional auth)
//
//	POST   /posts                           → create post           (auth)
//	PUT    /posts/{postId}                  → update post           (auth)
//	DELETE /posts/{postId}                  → delete post           (auth)
//	POST   /posts/{postId}/publish          → publish               (auth)
//	POST   /posts/{postId}/unpublish        → back to draft         (auth)
//	POST   /posts/{postId}/like             → toggle like           (auth)
//	POST   /posts/{postId}/save             → toggle save           (auth)
//	POST   /posts/{postId}/comments         → comment               (auth)
//	POST   /comments/{commentId}/replies    → reply                 (auth)
//	POST   /comments/{commentId}/like       → toggle like           (auth)
//	PUT    /comments/{commentId}            → edit comment          (auth)
//	DELETE /comments/{commentId}            → delete comment        (auth)
//	POST   /users/{id}/follow               → toggle follow         (auth)
//	GET    /me, PATCH /me, POST /me/image   → own account           (auth)
//	GET    /me/saved                        → saved posts           (auth)
//	POST   /uploads                         → image upload          (auth)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID assigns a unique ID to each request (for tracing)
// 2. RealIP extracts the client IP from proxy headers
// 3. Logger logs each request with its ID and timing
// 4. Recoverer turns a panic into a 500 instead of crashing (logged by 3)
// 5. Timeout cancels the request context after REQUEST_TIMEOUT
func (s *Server) setupRoutes(deps Deps) error {
	cfg := s.config

	// === Services ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := deps.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}
	renderer := content.NewRendererWithCache(cfg.RenderCacheSize)

	uploadService := service.NewUploadService(deps.Images, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, deps.Mailer, deps.GitHub, cfg.AppBaseURL, s.logger)
	accountService := service.NewAccountService(s.db, uploadService, s.logger)
	feedService := service.NewFeedService(s.db, s.db, s.logger)
	postService := service.NewPostService(s.db, s.db, renderer, s.logger)
	commentService := service.NewCommentService(s.db, s.db, renderer, s.logger)
	socialService := service.NewSocialService(s.db, s.db, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, auth.Cookies{Secure: cfg.CookieSecure}, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	uploadHandler := handler.NewUploadHandler(uploadService, s.logger)
	feedHandler := handler.NewFeedHandler(feedService, s.logger)
	rssHandler := handler.NewRSSHandler(feedService, cfg.AppBaseURL, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)
	socialHandler := handler.NewSocialHandler(socialService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		s.router.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	s.router.Get("/healthz", s.handleHealth)

	// === Auth Routes (public) ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Get("/verify", authHandler.HandleVerify)
		r.Post("/verify/resend", authHandler.HandleResend)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/password/forgot", authHandler.HandleForgotPassword)
		r.Post("/password/reset", authHandler.HandleResetPassword)

		if deps.GitHub != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === Public Reads ===
	// Anonymous viewers are welcome; a valid session fills in the
	// viewer-relative flags.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/feed", feedHandler.HandleFeed)
		r.Get("/feed.rss", rssHandler.HandleRSS)
		r.Get("/posts/{postId}", postHandler.HandleDetail)
		r.Get("/users/{id}", socialHandler.HandleProfile)
		r.Get("/users/{id}/posts", feedHandler.HandleUserPosts)
	})

	// === Authenticated Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Post("/posts", postHandler.HandleCreate)
		r.Put("/posts/{postId}", postHandler.HandleUpdate)
		r.Delete("/posts/{postId}", postHandler.HandleDelete)
		r.Post("/posts/{postId}/publish", postHandler.HandlePublish)
		r.Post("/posts/{postId}/unpublish", postHandler.HandleUnpublish)
		r.Post("/posts/{postId}/like", socialHandler.HandleLikePost)
		r.Post("/posts/{postId}/save", socialHandler.HandleSavePost)
		r.Post("/posts/{postId}/comments", commentHandler.HandleCreate)

		r.Post("/comments/{commentId}/replies", commentHandler.HandleReply)
		r.Post("/comments/{commentId}/like", socialHandler.HandleLikeComment)
		r.Put("/comments/{commentId}", commentHandler.HandleUpdate)
		r.Delete("/comments/{commentId}", commentHandler.HandleDelete)

		r.Post("/users/{id}/follow", socialHandler.HandleFollow)

		r.Get("/me", accountHandler.HandleMe)
		r.Patch("/me", accountHandler.HandleUpdate)
		r.Post("/me/image", accountHandler.HandleAvatar)
		r.Get("/me/saved", feedHandler.HandleSaved)

		r.Post("/uploads", uploadHandler.HandleUpload)
	})

	return nil
}

// handleHealth reports 200 when the database answers and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}` + "\n"))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Leave room for the handler timeout to write its 503.
		WriteTimeout: s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.AppBaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
