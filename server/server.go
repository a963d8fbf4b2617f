// Package server exposes liveness and per-group run status over HTTP for
// daemon mode. Endpoints are read-only, nothing here mutates delivery state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/feedhook/pkg/proc"
)

// Server represents HTTP server instance
type Server struct {
	listen  string
	version string
	debug   bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
	runs       map[string]RunInfo
	started    time.Time
}

// RunInfo is the recorded outcome of the most recent run for one group
type RunInfo struct {
	Group      string      `json:"group"`
	Result     proc.Result `json:"result"`
	FinishedAt time.Time   `json:"finished_at"`
	Error      string      `json:"error,omitempty"`
}

// New initializes a new server instance
func New(listen, version string, debug bool) *Server {
	s := &Server{
		listen:  listen,
		version: version,
		debug:   debug,
		router:  routegroup.New(http.NewServeMux()),
		runs:    map[string]RunInfo{},
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] starting server on %s", s.listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// RecordRun stores the outcome of a completed run, keyed by group name.
// Safe for concurrent use with request handlers.
func (s *Server) RecordRun(group string, res proc.Result, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	info := RunInfo{Group: group, Result: res, FinishedAt: time.Now()}
	if err != nil {
		info.Error = err.Error()
	}
	s.runs[group] = info
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedhook", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
	})
}

// statusHandler returns server status with the latest run per group
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	runs := make([]RunInfo, 0, len(s.runs))
	for _, info := range s.runs {
		runs = append(runs, info)
	}
	s.lock.Unlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].Group < runs[j].Group })

	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
		"since":   s.started.UTC(),
		"runs":    runs,
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}
