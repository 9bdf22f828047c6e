// Package handler implements the HTTP API over a served root.
package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Routes holds the handlers mounted by Mux. Nil handlers are not mounted.
type Routes struct {
	Files   *FilesHandler
	Cleanup *CleanupHandler
	Metrics http.Handler
}

// Mux builds the server's request router.
func (rt Routes) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", Health)
	if rt.Files != nil {
		mux.Handle("/files/{path...}", rt.Files)
		mux.Handle("GET /{$}", http.RedirectHandler("/files/", http.StatusFound))
	}
	if rt.Cleanup != nil {
		mux.Handle("/admin/cleanup", rt.Cleanup)
	}
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	return mux
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests logs every request at debug level once it completes.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
