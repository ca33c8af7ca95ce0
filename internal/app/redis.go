package app

import (
	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/ratelimit"
	"canvas-gateway/internal/redis"
)

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (session revocation disabled, rate limits kept per instance)")
		return nil
	}

	db, poolSize := app.Config.Redis()
	redisClient, err := redis.NewClient(redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       db,
		PoolSize: poolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

// initializeRateLimiter shares counts through Redis when it is connected and
// falls back to per-instance buckets otherwise.
func (app *App) initializeRateLimiter() {
	limit, window := app.Config.RateLimit()

	var store ratelimit.Store
	if app.RedisClient != nil {
		store = ratelimit.NewRedisStore(app.RedisClient)
	}

	app.Limiter = ratelimit.NewLimiter(store, ratelimit.Config{
		Enabled: app.Config.RateLimitEnabled,
		Policy:  ratelimit.Policy{Limit: limit, Window: window},
	}, logging.GetGlobalLogger())

	if !app.Limiter.Enabled() {
		app.Logger.Info("Rate Limiting: Disabled")
		return
	}
	app.Logger.Info("Rate Limiting: Enabled",
		logging.String("backend", app.Limiter.Backend()),
		logging.Int("limit", limit),
		logging.Duration("window", window),
	)
}
