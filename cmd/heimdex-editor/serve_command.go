package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/api"
	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/project"
	"github.com/heimdex/heimdex-editor/internal/undo"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local editing API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			listenPort := cfg.Port()
			if cmd.Flags().Changed("port") {
				if port < 1 || port > 65535 {
					return fmt.Errorf("--port must be between 1 and 65535")
				}
				listenPort = port
			}
			return serve(cmd, cfg, listenPort)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Override the configured port")
	return cmd
}

func serve(cmd *cobra.Command, cfg config.Config, port int) error {
	startTime := time.Now()

	logger := logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel())
	logger.Info("starting heimdex editor",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config_file", cfg.Source(),
	)

	lock, err := db.LockDataDir(cfg.DataDir())
	if err != nil {
		if errors.Is(err, db.ErrDataDirLocked) {
			return fmt.Errorf("%w: %s", err, cfg.DataDir())
		}
		return fmt.Errorf("failed to lock data dir: %w", err)
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(cmd.Context(), repo, cfg.AuthToken())
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	var store undo.Store
	undoBackend := "document"
	if cfg.RedisURL() != "" {
		rs, err := undo.NewRedisStore(cfg.RedisURL(), cfg.UndoWindow())
		if err != nil {
			return fmt.Errorf("failed to connect undo store: %w", err)
		}
		defer rs.Close()
		store = rs
		undoBackend = "redis"
	}

	svc := project.NewService(repo, logger, project.Options{
		UndoStore:           store,
		UndoLimit:           cfg.UndoWindow(),
		RippleMinConfidence: cfg.RippleMinConfidence(),
	})

	apiServer := api.NewServer(api.ServerConfig{
		Port:       port,
		Service:    svc,
		Repository: repo,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	fmt.Fprintln(cmd.OutOrStdout(), renderPairs([][2]string{
		{"HEIMDEX EDITOR", "v" + config.Version},
		{"API URL", "http://" + apiServer.Addr()},
		{"Auth Token", authToken},
		{"Undo store", undoBackend},
	}))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureAuthToken returns the API token. A configured override always wins
// and is persisted so the auth middleware sees it.
func ensureAuthToken(ctx context.Context, repo project.Repository, override string) (string, error) {
	if override != "" {
		if err := repo.SetConfig(ctx, api.AuthTokenKey, override); err != nil {
			return "", err
		}
		return override, nil
	}

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
