package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medipos/medipos/internal/auth"
	"github.com/medipos/medipos/internal/customers"
	"github.com/medipos/medipos/internal/invoices"
	"github.com/medipos/medipos/internal/medicines"
	"github.com/medipos/medipos/internal/observability"
	"github.com/medipos/medipos/internal/reports"
	"github.com/medipos/medipos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Auth             auth.Middleware
	MedicinesHandler *medicines.Handler
	CustomersHandler *customers.Handler
	InvoicesHandler  *invoices.Handler
	ReportsHandler   *reports.Handler
	JobsHandler      *jobs.Handler
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with MediPOS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(params.Auth.Require)
			protected.Route("/medicines", params.MedicinesHandler.MountRoutes)
			protected.Route("/customers", params.CustomersHandler.MountRoutes)
			protected.Route("/invoices", params.InvoicesHandler.MountRoutes)
			protected.Route("/reports", params.ReportsHandler.MountRoutes)
		})
		api.Group(func(admin chi.Router) {
			admin.Use(params.Auth.RequireAdmin)
			if params.JobsHandler != nil {
				admin.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	return r
}
