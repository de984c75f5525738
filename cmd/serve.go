package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/attendance"
	"github.com/Shivanand-hulikatti/event-planner/internal/auth"
	"github.com/Shivanand-hulikatti/event-planner/internal/config"
	"github.com/Shivanand-hulikatti/event-planner/internal/database"
	"github.com/Shivanand-hulikatti/event-planner/internal/handler"
	"github.com/Shivanand-hulikatti/event-planner/internal/repository"
	"github.com/Shivanand-hulikatti/event-planner/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-planner/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	serveHost  string
	servePort  int
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.Logging)
		if cfg.Auth.DevSecret {
			logger.Warn().Str("environment", cfg.Environment).Msg("JWT_SECRET not set; using the insecure development key")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides SERVER_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "store driver: postgres or memory (overrides STORE_DRIVER)")
	// The bare root command runs serve, so it accepts the same flags.
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveStore != "" {
		cfg.StoreDriver = serveStore
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

type stores struct {
	users  service.UserStore
	events interface {
		service.EventStore
		attendance.Store
	}
	close func()
}

func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store; data is lost on exit")
		db := memory.New()
		return &stores{users: db.Users(), events: db.Events(), close: func() {}}, nil
	}

	pool, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")
	return &stores{
		users:  repository.NewUserRepository(pool),
		events: repository.NewEventRepository(pool),
		close:  pool.Close,
	}, nil
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	authSvc := service.NewAuthService(st.users, tokens, hasher, logger)
	eventSvc := service.NewEventService(st.events, attendance.NewManager(st.events, logger), logger)

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: handler.NewRouter(handler.Deps{
			Config:  cfg,
			Auth:    authSvc,
			Events:  eventSvc,
			Logger:  logger,
			Started: time.Now(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
