package app

import (
	"net/http"

	"canvas-gateway/internal/common/logging"
	"canvas-gateway/internal/middleware"
	"canvas-gateway/internal/ratelimit"

	"github.com/gorilla/mux"
)

// Router configures all HTTP routes for the application
func (app *App) Router() http.Handler {
	logger := logging.GetGlobalLogger()

	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Recover(logger), middleware.Logging(logger))

	var callbacks []mux.MiddlewareFunc
	if app.Limiter != nil && app.Limiter.Enabled() {
		callbacks = append(callbacks, app.Limiter.Middleware(ratelimit.IPKey))
	}

	app.Handlers.Routes(router, callbacks...)
	return router
}
