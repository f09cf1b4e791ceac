// Package server sets up the HTTP server, router, and all route
// definitions.
//
// COMPOSITION ROOT:
// This is where the entire dependency graph is assembled, explicitly, once:
//
//	sqlite.DB (gateway) ─┐
//	identity.Store ──────┤
//	identity.Session ────┼─→ notify.Pipeline ─→ forum.Service ─→ PostHandler
//	tasks.Runner ────────┤                    └→ account.Service ─→ AccountHandler
//	auth services ───────┘
//
// Nothing reaches for a package-level instance; every service receives its
// collaborators through its constructor. Swapping the gateway for a fake in
// tests is the same one-line change as here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/campus-forum/internal/account"
	"github.com/sakif/campus-forum/internal/auth"
	"github.com/sakif/campus-forum/internal/email"
	"github.com/sakif/campus-forum/internal/forum"
	"github.com/sakif/campus-forum/internal/handler"
	"github.com/sakif/campus-forum/internal/identity"
	"github.com/sakif/campus-forum/internal/middleware"
	"github.com/sakif/campus-forum/internal/notify"
	sqliteRepo "github.com/sakif/campus-forum/internal/repository/sqlite"
	"github.com/sakif/campus-forum/internal/tasks"
)

// Config holds server configuration, loaded from the environment in
// cmd/server.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
	Workers   int
}

// Server owns the router, the database connection, and the background task
// runner — the resources that need an orderly shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	runner *tasks.Runner
}

// New builds the full dependency graph and wires the routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		runner: tasks.NewRunner(cfg.Workers, logger),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes constructs services, loads persisted state, and maps URLs.
func (s *Server) setupRoutes() error {
	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Core services ===
	identities := identity.New(s.logger)
	session := identity.NewSession()
	pipeline := notify.New(identities, s.logger)
	passwords := auth.NewPasswordService()
	mail := email.NewDevSender(s.logger)

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	posts := forum.NewService(identities, session, pipeline, s.db, s.runner, s.logger)
	accounts := account.NewService(identities, session, pipeline, passwords,
		s.db, s.runner, mail, s.logger)

	// === Load persisted state ===
	// Best-effort, like every other gateway interaction: a failed load
	// starts the process empty (the post store seeds its demo fixture on
	// first read), it does not abort startup.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if users, err := s.db.LoadUsers(ctx); err != nil {
		s.logger.Warn("loading users failed; starting empty",
			slog.String("error", err.Error()))
	} else {
		identities.Load(users)
	}
	if persisted, err := s.db.LoadPosts(ctx); err != nil {
		s.logger.Warn("loading posts failed; starting empty",
			slog.String("error", err.Error()))
	} else {
		posts.Load(persisted)
	}

	// === Handlers ===
	accountHandler := handler.NewAccountHandler(accounts, tokens, s.logger)
	postHandler := handler.NewPostHandler(posts, s.logger)

	// === Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Public: registration and login
		r.Post("/register", accountHandler.HandleRegister)
		r.Post("/login", accountHandler.HandleLogin)
		r.Post("/logout", accountHandler.HandleLogout)
		r.Post("/verification-code", accountHandler.HandleSendCode)

		// Public reads (identity optional — comment attribution and
		// self-notification suppression use it when present)
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/posts", postHandler.HandleList)
			r.Get("/posts/search", postHandler.HandleSearch)
			r.Get("/posts/hot", postHandler.HandleHot)
			r.Get("/posts/category/{category}", postHandler.HandleByCategory)
			r.Get("/posts/{id}", postHandler.HandleGet)
			r.Post("/posts/{id}/view", postHandler.HandleIncrementView)
			r.Put("/posts/strategies", postHandler.HandleSetStrategies)
		})

		// Authenticated interactions
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", accountHandler.HandleMe)
			r.Put("/me", accountHandler.HandleUpdateProfile)
			r.Put("/me/password", accountHandler.HandleUpdatePassword)
			r.Get("/me/notifications", accountHandler.HandleNotifications)
			r.Post("/me/notifications/{id}/read", accountHandler.HandleMarkNotificationRead)
			r.Get("/posts/mine", postHandler.HandleMine)
			r.Post("/posts", postHandler.HandleCreate)
			r.Post("/posts/{id}/like", postHandler.HandleToggleLike)
			r.Post("/posts/{id}/comments", postHandler.HandleAddComment)
		})
	})

	return nil
}

// Start runs the HTTP server and handles graceful shutdown: stop accepting
// connections, drain in-flight requests, flush the task runner's pending
// persistence work, then close the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.runner.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
