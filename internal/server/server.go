// Package server wires the database, services, handlers and middleware onto
// a chi router and runs the HTTP server with graceful shutdown.
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

	"github.com/nalvarez/diceydecisions/internal/auth"
	"github.com/nalvarez/diceydecisions/internal/handler"
	"github.com/nalvarez/diceydecisions/internal/middleware"
	sqliteRepo "github.com/nalvarez/diceydecisions/internal/repository/sqlite"
	"github.com/nalvarez/diceydecisions/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
	// Production toggles the Secure attribute on session cookies.
	Production bool
}

// Server owns the router and the database connection; the connection is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the full dependency chain, from
// repositories up through services and handlers to the routes.
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
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	roomService := service.NewRoomService(s.db, s.db, s.db, s.logger)
	optionService := service.NewOptionService(s.db, s.db, s.logger)
	votingService := service.NewVotingService(s.db, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.config.Production, s.logger)
	roomHandler := handler.NewRoomHandler(roomService, s.logger)
	optionHandler := handler.NewOptionHandler(optionService, s.logger)
	votingHandler := handler.NewVotingHandler(votingService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.HandleSignUp)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		// Everything below requires a valid session.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authHandler.HandleMe)

			r.Post("/rooms", roomHandler.HandleCreate)
			r.Get("/rooms", roomHandler.HandleList)
			r.Post("/rooms/join", roomHandler.HandleJoin)
			r.Get("/rooms/{code}", roomHandler.HandleDetails)
			r.Post("/rooms/{code}/start", roomHandler.HandleStartVoting)

			r.Post("/rooms/{code}/options", optionHandler.HandleAdd)
			r.Delete("/rooms/{code}/options/{optionID}", optionHandler.HandleRemove)

			r.Post("/rooms/{code}/vote", votingHandler.HandleVote)
			r.Get("/rooms/{code}/results", votingHandler.HandleResults)
			r.Post("/rooms/{code}/tiebreaker", votingHandler.HandleResolveTie)
		})
	})

	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the server's database connection. Start does this itself;
// Close exists for callers that never Start (tests).
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, let in-flight requests finish,
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

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
