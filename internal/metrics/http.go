package metrics

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigcomputing/nws/internal/nwslog"
)

// NewHandler builds the chi mux nwsd serves on its web port: /metrics for
// Prometheus scraping, /healthz as a liveness probe, /debug/log to dump
// the in-memory log ring buffer, and /debug/clients to render
// clientStats (nil disables the route), mirroring the
// request-ID/real-IP/recoverer middleware stack marmos91-dittofs's
// NewRouter uses ahead of its own handlers. clientStats is supplied as a
// pre-formatted string producer so this ambient package never needs to
// import internal/registry.
func NewHandler(m *Metrics, clientStats func() string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/debug/log", func(w http.ResponseWriter, req *http.Request) {
		for _, line := range nwslog.History() {
			w.Write([]byte(line))
			w.Write([]byte("\n"))
		}
	})
	if clientStats != nil {
		r.Get("/debug/clients", func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, clientStats())
		})
	}

	return r
}

func isHealthPath(path string) bool {
	return path == "/healthz"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if isHealthPath(r.URL.Path) {
			return
		}
		nwslog.Debug("metrics: %s %s -> %d (%v) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start), requestID)
	})
}
