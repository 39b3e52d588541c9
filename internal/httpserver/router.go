package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"flashdetail/internal/handlers"
	"flashdetail/internal/metrics"
	"flashdetail/internal/middleware"
)

// Options configures the gateway router.
type Options struct {
	RequestTimeout time.Duration
	AdminToken     string
}

// SetupRouter mounts the lookup routes, and the admin routes when both an
// admin handler and a token are given.
func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, resolve *handlers.ResolveHandler, admin *handlers.AdminHandler) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(chimw.RequestSize(64 * 1024))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/flash/pn/{pn}", resolve.FlashPartNumber)
		r.Get("/flash/id/{id}", resolve.FlashID)
		r.Get("/dram/{pn}", resolve.DRAM)
		r.Get("/micron/{code}", resolve.Micron)
		r.Get("/lookup/{pn}", resolve.Lookup)
		r.Get("/search", resolve.Search)

		if admin == nil {
			return
		}
		if opts.AdminToken == "" {
			baseLogger.Warn("admin API disabled: no admin_token configured")
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireToken(opts.AdminToken))

			r.Route("/endpoints/{family}", func(r chi.Router) {
				r.Get("/", admin.ListEndpoints)
				r.Post("/", admin.AddEndpoint)
				r.Delete("/", admin.RemoveEndpoint)
				r.Post("/insert", admin.InsertEndpoint)
				r.Get("/status", admin.EndpointStatus)
			})

			r.Get("/cache", admin.ListTables)
			r.Route("/cache/{table}", func(r chi.Router) {
				r.Get("/", admin.ListKeys)
				r.Delete("/", admin.DeleteTable)
				r.Post("/clear", admin.ClearTable)
				r.Get("/{key}", admin.GetRecord)
				r.Delete("/{key}", admin.DeleteRecord)
				r.Patch("/{key}", admin.EditRecord)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
