// Command server runs the proctored exam API.
//
//	server [serve]          start the HTTP server (default)
//	server migrate          apply pending database migrations
//	server seed <file.yaml> load users and exams from a fixture file
package main

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

	"github.com/iliyamo/proctored-exam/internal/config"
	"github.com/iliyamo/proctored-exam/internal/database"
	"github.com/iliyamo/proctored-exam/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel))

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = migrateUp(cfg, log)
	case "seed":
		if len(args) != 1 {
			err = errors.New("usage: server seed <file.yaml>")
			break
		}
		err = seed(ctx, cfg, log, args[0])
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.StoreDriver == config.DriverMemory && cfg.SeedFile != "" {
		if err := a.Seed(ctx, cfg.SeedFile); err != nil {
			return err
		}
	}
	a.StartBackground(ctx)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

func migrateUp(cfg config.Config, log *slog.Logger) error {
	if cfg.StoreDriver != config.DriverMySQL {
		return errors.New("migrate requires STORE_DRIVER=mysql")
	}
	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err := database.RunMigrations(database.MigrationURL(dsn)); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func seed(ctx context.Context, cfg config.Config, log *slog.Logger, path string) error {
	if cfg.StoreDriver == config.DriverMemory {
		return errors.New("seed into the memory store with SEED_FILE at serve time")
	}
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Seed(ctx, path)
}
