package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/config"
	"canvas-gateway/internal/server"

	"github.com/joho/godotenv"
)

// Version is overridden at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// ShutdownTimeout bounds how long in-flight requests get once a stop signal arrives.
const ShutdownTimeout = 30 * time.Second

// Run loads .env and the environment, builds the gateway and serves until
// SIGINT or SIGTERM.
func Run() error {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, flush, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer flush()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", err)
		return err
	}

	logger.Info("Starting canvas gateway",
		logging.String("version", Version),
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("provider", cfg.ProviderID),
		logging.String("storage", cfg.DatabaseType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(cfg)
	if err != nil {
		logger.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	return app.Serve(ctx)
}

// Serve starts the background jobs and the HTTP server, then blocks until ctx
// is done or the server fails. A cancelled ctx shuts the server down
// gracefully and returns nil.
func (app *App) Serve(ctx context.Context) error {
	if err := app.StartBackgroundJobs(); err != nil {
		app.Logger.Error("Failed to start background jobs", err)
		return err
	}

	srv := server.New(app.Router(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile, logging.GetGlobalLogger())
	if err := srv.Start(); err != nil {
		app.Logger.Error("Server failed to start", err)
		return err
	}

	select {
	case err := <-srv.Errors():
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Server forced to shutdown", err)
		return err
	}
	app.Logger.Info("Server exited")
	return nil
}
