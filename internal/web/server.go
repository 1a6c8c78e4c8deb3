// Package web provides an HTTP status and control server for the blinky-buzzer daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/logging"
	"github.com/sweeney/blinky-buzzer/internal/status"
)

// maxCommandBytes bounds a POST /command body.
const maxCommandBytes = 4096

// SubmitFunc hands a command to the control loop. It must not block and
// returns false when the command could not be queued.
type SubmitFunc func(command.Command) bool

// Server serves the status page and accepts commands over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	submit     SubmitFunc
}

// New creates a Server that reads state from the given tracker and queues
// commands through submit. A nil submit disables POST /command.
func New(addr string, tracker *status.Tracker, submit SubmitFunc) *Server {
	s := &Server{tracker: tracker, submit: submit}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/command", s.handleCommand)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		logging.Warnf("render status page: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.submit == nil {
		http.Error(w, "commands disabled", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := command.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.submit(cmd) {
		logging.Warnf("http: command queue full, dropped %s", cmd)
		http.Error(w, "command queue full", http.StatusServiceUnavailable)
		return
	}
	logging.Debugf("http: queued %s", cmd)
	w.WriteHeader(http.StatusAccepted)
}
