// Package httpapi implements the loopback local HTTP endpoint (spec.md
// §4.7): a companion-web-UI-facing API that validates signed-JWT commands,
// enqueues them on the dispatcher, and lets the UI drain status events
// either by polling /api/results or by subscribing to the additive
// /api/stream websocket push channel.
package httpapi

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// Dispatcher is the subset of *dispatcher.Dispatcher the HTTP endpoint
// depends on, defined at the consumer.
type Dispatcher interface {
	Submit(ctx context.Context, t taskid.Task) error
	Drain() []taskid.Event
	Subscribe() (ch chan taskid.Event, cancel func())
}

// AuthChecker reports whether the daemon currently holds a valid session,
// surfaced on /api/ping (spec.md §4.7 table: "return {result:"pong", auth}").
type AuthChecker func(ctx context.Context) bool

// Server is the loopback HTTP endpoint. Every signed-command route shares
// the same referer/JWT validation (verifyAndDecode) before enqueuing.
type Server struct {
	Dispatcher      Dispatcher
	PublicKey       *rsa.PublicKey
	CompanionOrigin string
	AuthCheck       AuthChecker
	Logger          *slog.Logger

	mux *http.ServeMux
}

// NewServer builds a Server and registers every route from spec.md §4.7's
// table, including the /api/stream websocket addition.
func NewServer(d Dispatcher, publicKey *rsa.PublicKey, companionOrigin string, authCheck AuthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Dispatcher:      d,
		PublicKey:       publicKey,
		CompanionOrigin: companionOrigin,
		AuthCheck:       authCheck,
		Logger:          logger,
		mux:             http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/auth", s.corsWrap(s.handleAuth))
	s.mux.HandleFunc("/api/sync", s.corsWrap(s.commandRoute(taskid.KindSync)))
	s.mux.HandleFunc("/api/workon", s.corsWrap(s.commandRoute(taskid.KindWorkOn)))
	s.mux.HandleFunc("/api/workdone", s.corsWrap(s.commandRoute(taskid.KindWorkDone)))
	s.mux.HandleFunc("/api/update", s.corsWrap(s.commandRoute(taskid.KindUpdate)))
	s.mux.HandleFunc("/api/tasks", s.corsWrap(s.commandRoute(taskid.KindTasks)))
	s.mux.HandleFunc("/api/shutdown", s.corsWrap(s.commandRoute(taskid.KindShutdown)))
	s.mux.HandleFunc("/api/settings", s.corsWrap(s.commandRoute(taskid.KindSettings)))
	s.mux.HandleFunc("/api/ping", s.corsWrap(s.handlePing))
	s.mux.HandleFunc("/api/results", s.corsWrap(s.handleResults))
	s.mux.HandleFunc("/api/stream", s.corsWrap(s.handleStream))

	return s
}

// Handler returns the assembled mux for http.Server.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) corsWrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.CompanionOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next(w, r)
	}
}

// verifyReferer pins the Referer header to the configured companion origin
// (spec.md §4.7: "Each route verifies the Referer against the configured
// companion origin").
func (s *Server) verifyReferer(r *http.Request) bool {
	referer := r.Referer()
	if referer == "" {
		return false
	}

	return strings.HasPrefix(referer, s.CompanionOrigin)
}

// dataParam extracts the "data" parameter: body for POST, query for GET
// (spec.md §4.7).
func dataParam(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("data")
	}

	_ = r.ParseForm()

	return r.PostFormValue("data")
}

// commandRoute builds a handler that verifies the referer, decodes the
// signed JWT payload, enqueues a task of kind, and responds with
// {result:"started", task_id} (spec.md §4.7).
func (s *Server) commandRoute(kind taskid.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.verifyAndDecode(w, r)
		if !ok {
			return
		}

		id := taskid.New()

		if err := s.Dispatcher.Submit(r.Context(), taskid.Task{ID: id, Kind: kind, Data: claims}); err != nil {
			s.writeJSONError(w, http.StatusServiceUnavailable, err)

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"result": "started", "task_id": id})
	}
}

// handleAuth is the one route with a GET variant that returns a
// human-readable banner instead of JSON (spec.md §4.7 table).
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.verifyAndDecode(w, r)
	if !ok {
		return
	}

	id := taskid.New()

	if err := s.Dispatcher.Submit(r.Context(), taskid.Task{ID: id, Kind: taskid.KindAuth, Data: claims}); err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, err)

		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Authentication received. You may close this window.\n")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": "started", "task_id": id})
}

// handlePing never enqueues a task; it is also used on startup to detect an
// already-running instance by collision (spec.md §4.7: "/ping never
// enqueues, and is also used on startup to detect an already-running
// instance").
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	auth := false
	if s.AuthCheck != nil {
		auth = s.AuthCheck(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":  "pong",
		"task_id": taskid.New(),
		"auth":    auth,
	})
}

// handleResults pops every pending status event non-blockingly (spec.md
// §4.7: "A drain route (/results) pops all pending status events
// non-blockingly").
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	events := s.Dispatcher.Drain()
	if events == nil {
		events = []taskid.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, err error) {
	s.Logger.Error("httpapi: handler error", slog.Int("status", status), slog.Any("error", err))
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RunServer starts the loopback HTTP server on addr and blocks until ctx is
// canceled, then shuts it down gracefully.
func RunServer(ctx context.Context, addr string, s *Server) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
