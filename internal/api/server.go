// Package api serves the run history over HTTP: JSON run records, an
// interactive heat map per run and raster downloads.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/vismag/internal/grid"
	"github.com/banshee-data/vismag/internal/httputil"
	"github.com/banshee-data/vismag/internal/monitoring"
	"github.com/banshee-data/vismag/internal/raster"
	"github.com/banshee-data/vismag/internal/runstore"
	"github.com/banshee-data/vismag/internal/security"
)

const defaultListLimit = 50

type Server struct {
	store *runstore.Store
}

func NewServer(store *runstore.Store) *Server {
	return &Server{store: store}
}

// ServeMux registers the run history routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)
	mux.HandleFunc("GET /runs/{id}/heatmap", s.heatmap)
	mux.HandleFunc("GET /runs/{id}/magnitude.asc", s.downloadASCII)
	mux.HandleFunc("GET /runs/{id}/magnitude.png", s.downloadPNG)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("[%d] %s %s %vms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.store.List(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) heatmap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, _, err := s.load(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	maxCells := raster.DefaultMaxHTMLCells
	if v := r.URL.Query().Get("max_cells"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxCells = n
		}
	}

	var buf bytes.Buffer
	if err := raster.WriteHTML(&buf, g, "Visual magnitude "+id, maxCells); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) downloadASCII(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, run, err := s.load(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := raster.WriteASCIIGrid(&buf, g, run.Georef); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode grid: %v", err))
		return
	}
	s.attach(w, "text/plain; charset=utf-8", id+".asc", buf.Bytes())
}

func (s *Server) downloadPNG(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, _, err := s.load(id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := raster.WritePNG(&buf, g, "Visual magnitude", 8); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render png: %v", err))
		return
	}
	s.attach(w, "image/png", id+".png", buf.Bytes())
}

func (s *Server) load(id string) (*grid.Grid, *runstore.Run, error) {
	run, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.store.Grid(id)
	if err != nil {
		return nil, nil, err
	}
	return g, run, nil
}

func (s *Server) attach(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", security.SanitizeFilename(name)))
	_, _ = w.Write(body)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, runstore.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
