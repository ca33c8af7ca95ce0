package app

import (
	"context"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/locks"
	"canvas-gateway/internal/sweeper"
)

func (app *App) initializeSweeper() error {
	var locker locks.Locker = locks.NewLocalLocker()
	if app.RedisClient != nil {
		redsyncLocker, err := locks.NewRedsyncLocker(app.RedisClient)
		if err != nil {
			return err
		}
		locker = redsyncLocker
	}

	app.Sweeper = sweeper.New(app.Storage, locker, logging.GetGlobalLogger())
	return nil
}

// StartBackgroundJobs schedules the token sweep unless it is turned off.
func (app *App) StartBackgroundJobs() error {
	if !app.Config.SweepEnabled() {
		app.Logger.Info("Token sweep: disabled")
		return nil
	}
	return app.Sweeper.Start(app.Config.SweepSchedule)
}

func (app *App) stopBackgroundJobs(ctx context.Context) {
	if app.Sweeper == nil {
		return
	}
	if err := app.Sweeper.Stop(ctx); err != nil {
		app.Logger.Warn("Token sweep did not stop cleanly", logging.Err(err))
	}
}
