package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"etl-records/internal/dispatch"
	"etl-records/internal/parser"
	"etl-records/internal/record"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LoadFunc reads a batch from a location.
type LoadFunc func(ctx context.Context, location string) ([]record.Record, error)

// RunFunc processes a batch end to end, including finalizing its sinks.
type RunFunc func(ctx context.Context, records []record.Record) (dispatch.Summary, error)

// Server encapsulates the HTTP server, router and job registry.
//
// Jobs run in the background but one at a time: sinks may be shared files
// or topics and their output must not interleave between batches.
type Server struct {
	mux    *http.ServeMux
	mu     sync.RWMutex
	jobs   map[string]*jobEntry
	load   LoadFunc
	run    RunFunc
	parser *parser.Parser

	runMu sync.Mutex
	wg    sync.WaitGroup
}

type jobEntry struct {
	status *JobStatus
}

// NewServer builds a server with basic logging and panic recovery middlewares.
func NewServer(load LoadFunc, run RunFunc) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		jobs:   make(map[string]*jobEntry),
		load:   load,
		run:    run,
		parser: parser.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/jobs", s.handleJobs)     // POST /jobs
	s.mux.HandleFunc("/jobs/", s.handleJobByID) // GET /jobs/{id}
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.recoveryMiddleware(s.loggingMiddleware(s.mux))
}

// Wait blocks until every submitted job has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Run starts the HTTP server on the provided port and blocks until ctx is
// cancelled or the listener fails. On cancellation it shuts down gracefully
// and waits for running jobs.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("HTTP server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Wait()
		return err
	})
	return g.Wait()
}

// Simple request logger middleware.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logrus.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware catches panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("panic recovered: %v", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
