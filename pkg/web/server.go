// Package web serves a read-only HTTP view of the daemon: the current
// inferred tool per watcher, inference diagnostics, and metrics. It is a
// passive projection and never triggers recomputation.
package web

import (
	"encoding/json"
	"net/http"
	"time"

	"pinwatch-go/pkg/log"
	"pinwatch-go/pkg/metrics"
	"pinwatch-go/pkg/pinwatch"
)

// StatusSource is the read-only view a watcher exposes.
type StatusSource interface {
	Name() string
	CurrentTool() int
	LastDiagnostics() pinwatch.Diagnostics
	ToolCount() int
}

// Server is the HTTP status server.
type Server struct {
	addr     string
	sources  []StatusSource
	registry *metrics.Registry
	log      *log.Logger

	startTime  time.Time
	httpServer *http.Server
}

// New creates a status server for the given watchers. The http.Server is
// built here so Stop is safe no matter when it runs relative to Start.
func New(addr string, sources []StatusSource, registry *metrics.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New("web")
	}
	s := &Server{
		addr:      addr,
		sources:   sources,
		registry:  registry,
		log:       logger,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// watcherStatus is the JSON view of one watcher.
type watcherStatus struct {
	Name        string `json:"name"`
	CurrentTool int    `json:"current_tool"`
	ToolCount   int    `json:"tool_count"`
	N           int    `json:"n"`
	Ex          int    `json:"ex"`
	S           int    `json:"s"`
	Empties     int    `json:"empties"`
	Bad         bool   `json:"bad"`
}

// statusResponse is the JSON view of the daemon.
type statusResponse struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	Watchers      []watcherStatus `json:"watchers"`
}

// Start begins listening. It blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.log.Info("status server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	for _, src := range s.sources {
		diag := src.LastDiagnostics()
		resp.Watchers = append(resp.Watchers, watcherStatus{
			Name:        src.Name(),
			CurrentTool: src.CurrentTool(),
			ToolCount:   src.ToolCount(),
			N:           diag.N,
			Ex:          diag.Ex,
			S:           diag.S,
			Empties:     diag.Empties,
			Bad:         diag.Bad,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Warn("encode status response")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Handler returns the mux for testing without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.registry != nil {
		mux.Handle("/metrics", s.registry.Handler())
	}
	return mux
}
