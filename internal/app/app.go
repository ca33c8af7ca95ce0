package app

import (
	"context"
	"io"
	"time"

	"canvas-gateway/internal/canvas"
	"canvas-gateway/internal/circuitbreaker"
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/config"
	"canvas-gateway/internal/connect"
	"canvas-gateway/internal/deauth"
	"canvas-gateway/internal/handlers"
	"canvas-gateway/internal/ratelimit"
	"canvas-gateway/internal/redis"
	"canvas-gateway/internal/session"
	"canvas-gateway/internal/signature"
	"canvas-gateway/internal/signedrequest"
	"canvas-gateway/internal/storage"
	"canvas-gateway/internal/sweeper"
	"canvas-gateway/internal/webhook"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Repository
	RedisClient *redis.Client
	Breakers    *circuitbreaker.Manager
	Sessions    *session.Manager
	Limiter     *ratelimit.Limiter
	Dispatcher  *webhook.Dispatcher
	Handlers    *handlers.Handlers
	Sweeper     *sweeper.Sweeper
	Logger      logging.Logger

	closers []io.Closer
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
		Breakers: circuitbreaker.NewManager(logging.GetGlobalLogger()),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}
	app.initializeRateLimiter()

	if err := app.initializeSessions(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeWebhooks(context.Background()); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeHandlers(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeSweeper(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeSessions() error {
	var revoker session.Revoker
	if app.RedisClient != nil {
		revoker = app.RedisClient
	} else {
		app.Logger.Info("Session revocation: disabled (no Redis)")
	}

	sessions, err := session.NewManager(session.Config{
		Secret:     []byte(app.Config.SessionSecret),
		TTL:        app.Config.SessionDuration(),
		CookieName: app.Config.SessionCookie,
	}, revoker, logging.GetGlobalLogger())
	if err != nil {
		return err
	}
	app.Sessions = sessions
	return nil
}

func (app *App) initializeWebhooks(ctx context.Context) error {
	verifier, err := signature.NewVerifier([]byte(app.Config.AppSecret), logging.GetGlobalLogger())
	if err != nil {
		return err
	}

	app.Dispatcher = webhook.NewDispatcher(verifier, logging.GetGlobalLogger())
	app.Dispatcher.Register(webhook.NewLoggingHandler(logging.GetGlobalLogger()))
	app.initializeForwarders(ctx)

	app.Logger.Info("Webhooks: Ready",
		logging.Strings("subscriptions", app.Config.Subscriptions()),
		logging.Int("handlers", app.Dispatcher.Handlers()),
	)
	return nil
}

func (app *App) initializeHandlers() error {
	verifier, err := signedrequest.NewVerifier([]byte(app.Config.AppSecret))
	if err != nil {
		return err
	}

	logger := logging.GetGlobalLogger()
	signIn := connect.NewService(app.Storage, app.Sessions, app.Config.ProviderID, app.Config.AutoSignUp, logger)

	flow := canvas.NewFlow(canvas.Config{
		ClientID:      app.Config.AppID,
		CanvasPageURL: app.Config.CanvasPageURL,
		DialogURL:     app.Config.OAuthDialogURL,
		Scope:         app.Config.Scopes(),
		PostSignInURL: app.Config.PostSignInURL,
		DeclineURL:    app.Config.PostDeclineURL,
	}, verifier, signIn, logger)

	app.Handlers = handlers.New(handlers.Options{
		Flow: flow,
		Deauth: map[string]handlers.DeauthHandler{
			app.Config.ProviderID: deauth.NewHandler(verifier, app.Storage, app.Config.ProviderID, logger),
		},
		DefaultProvider: app.Config.ProviderID,
		Receiver:        app.Dispatcher,
		VerifyTokens:    app.Config.VerifyTokens(),
		Sessions:        app.Sessions,
		Breakers:        app.Breakers,
		HealthChecks:    app.healthChecks(),
		MaxBodyBytes:    app.Config.MaxBodySize(),
		Logger:          logger,
	})
	return nil
}

func (app *App) healthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{{Name: "storage", Check: app.Storage.Health}}
	if app.RedisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: app.RedisClient.Health})
	}
	return checks
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.stopBackgroundJobs(ctx)

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.Logger.Warn("Error closing forwarder", logging.Err(err))
		}
	}
	app.closers = nil

	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
