package api

import (
	"net/http"
	"streamline/api/router/handlers"
	"streamline/core"
	"streamline/logger"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options carries the long-lived services the handlers need.
type Options struct {
	Proxy        *core.ProxyService
	Metrics      *core.Metrics
	Logs         handlers.LogPaths
	UpdateURL    string
	UpdateClient *http.Client
}

// NewRouter creates the API router. All registered paths are relative to the /api base path.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	handlers.RegisterHealthRoutes(r)
	handlers.RegisterVersionRoutes(r)
	handlers.RegisterRuleRoutes(r)
	handlers.RegisterSettingsRoutes(r)
	handlers.RegisterLogRoutes(r, opts.Logs)
	if opts.Proxy != nil {
		handlers.RegisterProxyRoutes(r, opts.Proxy)
	}
	if opts.UpdateURL != "" {
		handlers.RegisterUpdateRoutes(r, opts.UpdateURL, opts.UpdateClient)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/swagger.json", swaggerHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		logger.Error("API catch-all: unhandled route %s %s", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}` + "\n"))
	})
	return r
}

// NewHandler mounts the API router under /api.
func NewHandler(opts Options) http.Handler {
	root := chi.NewRouter()
	root.Mount("/api", NewRouter(opts))
	return root
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("API %s %s -> %d (%s, request %s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}
