package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/auth"
	"github.com/paramean/targeting/internal/debug"
	"github.com/paramean/targeting/internal/member"
	"github.com/paramean/targeting/internal/report"
	"github.com/paramean/targeting/internal/targeting"
	session "github.com/paramean/targeting/internal/shared/auth"
	"github.com/paramean/targeting/internal/shared/config"
	"github.com/paramean/targeting/internal/shared/errors"
	"github.com/paramean/targeting/internal/shared/events"
	"github.com/paramean/targeting/internal/shared/metrics"
	secmiddleware "github.com/paramean/targeting/internal/shared/middleware"
	"github.com/paramean/targeting/internal/warehouse"
)

const maxBodyBytes = 1 << 20

type healthChecker interface {
	Health(ctx context.Context) error
}

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	DB        healthChecker
	Members   member.Store
	Warehouse warehouse.Warehouse
	Table     warehouse.Table
	Bus       events.Publisher
}

// Router wires middleware and every module's routes.
func (app *App) Router() (http.Handler, error) {
	cfg := app.Config
	production := cfg.Server.IsProduction()
	sessions := session.NewSessions(cfg.Auth, production)

	login, err := auth.NewHandler(cfg.Auth, sessions, production, app.Log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(app.Log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.SecurityHeaders(production))
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", app.readyHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", login.Routes())

		r.Group(func(r chi.Router) {
			r.Use(session.Middleware(sessions))

			members := member.NewHandler(app.Members, app.Bus, app.Log)
			r.Mount("/members", members.MemberRoutes())
			r.Mount("/settings", members.SettingsRoutes())

			reports := report.NewHandler(report.NewService(app.Warehouse, app.Table), app.Log)
			r.Mount("/report", reports.Routes())

			runs := targeting.NewHandler(targeting.NewService(app.Warehouse, app.Table, app.Log), app.Bus, app.Log)
			r.Mount("/targeting", runs.Routes())

			if cfg.Server.DebugEndpoint {
				app.Log.Warn("debug endpoint enabled")
				r.Mount("/debug", debug.Routes(cfg.Warehouse))
			}
		})
	})

	return r, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (app *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	deps := map[string]healthChecker{
		"database":  app.DB,
		"warehouse": app.Warehouse,
		"events":    app.Bus,
	}

	checks := make(map[string]string, len(deps))
	ready := true
	for name, dep := range deps {
		if err := dep.Health(r.Context()); err != nil {
			app.Log.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "not ready"
			ready = false
			continue
		}
		checks[name] = "ready"
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not ready"
	}
	errors.WriteJSON(w, status, map[string]any{"status": label, "checks": checks})
}

func (app *App) addr() string {
	return fmt.Sprintf(":%d", app.Config.Server.Port)
}
