// Package dashboard serves the scene and control panel: a websocket hub
// for live updates, a small JSON API and rendered charts.
package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	ErrServeFailed = errors.ErrorCode("dashboard_serve_failed")

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type Options struct {
	Address  string
	Debounce time.Duration
	// CheckOrigin defaults to allowing any origin.
	CheckOrigin func(r *http.Request) bool
}

// Server publishes ticks to websocket clients and keeps the last one for
// HTTP readers.
type Server struct {
	opts     Options
	hub      *Hub
	control  *control
	upgrader websocket.Upgrader
	last     atomic.Pointer[pipeline.Tick]
	state    atomic.Value
}

func New(opts Options, ctl Controller) *Server {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s := &Server{
		opts:    opts,
		hub:     NewHub(),
		control: &control{ctl: ctl, debounce: opts.Debounce},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
	s.state.Store(connection.Idle)

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /charts", s.handleCharts)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves HTTP and the hub until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return errors.New().Wrap(ErrServeFailed, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", ln.Addr().String()).Msg("Dashboard listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.control.stop()
		return errors.New().Wrap(ErrServeFailed, err)
	case <-ctx.Done():
	}

	s.control.stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

// Hub exposes the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// PublishTick stores t as the last tick and broadcasts it.
func (s *Server) PublishTick(_ context.Context, t pipeline.Tick) error {
	s.last.Store(&t)
	s.hub.Broadcast(TypeScene, t.Scene)
	s.hub.Broadcast(TypePanel, newPanelPayload(&t))
	return nil
}

func (s *Server) PublishConnection(_ context.Context, from, to connection.State) error {
	s.state.Store(to)
	s.hub.Broadcast(TypeConnection, connectionPayload{From: from, To: to, Label: to.Label()})
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := newClient(s.hub, conn)
	if !s.hub.join(c) {
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(r.Context(), s.control)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	t := s.last.Load()
	if t == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no tick published yet")
		return
	}
	writeJSON(w, http.StatusOK, statePayload{Scene: t.Scene, Panel: newPanelPayload(t)})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsPayload(s.control.ctl.Settings()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state, _ := s.state.Load().(connection.State)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"connection": state.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
