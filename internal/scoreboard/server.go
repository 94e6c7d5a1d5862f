package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixil98/go-arena/internal/arena"
)

const (
	DefaultInterval = time.Second
	DefaultPongWait = 60 * time.Second

	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Source produces the snapshots the scoreboard serves.
type Source interface {
	Status(ctx context.Context) (arena.Status, error)
}

// Server streams arena snapshots to websocket viewers on /ws and serves a
// single snapshot on /snapshot.
type Server struct {
	addr     string
	src      Source
	interval time.Duration
	pongWait time.Duration

	upgrader websocket.Upgrader
	viewers  atomic.Int64
	ready    chan struct{}
	bound    atomic.Value
}

func NewServer(addr string, src Source, opts ...ServerOpt) *Server {
	s := &Server{
		addr:     addr,
		src:      src,
		interval: DefaultInterval,
		pongWait: DefaultPongWait,
		ready:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Viewers returns the number of open websocket streams.
func (s *Server) Viewers() int {
	return int(s.viewers.Load())
}

// Ready is closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address, available after Ready.
func (s *Server) Addr() string {
	if a, ok := s.bound.Load().(string); ok {
		return a
	}
	return s.addr
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleStream)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.bound.Store(ln.Addr().String())

	srv := &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down scoreboard", "error", err)
		}
	}()

	slog.InfoContext(ctx, "serving scoreboard", "addr", ln.Addr().String())
	close(s.ready)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving scoreboard: %w", err)
	}
	return nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	st, err := s.src.Status(r.Context())
	if err != nil {
		slog.WarnContext(r.Context(), "building snapshot", "error", err)
		http.Error(w, "arena unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		slog.WarnContext(r.Context(), "writing snapshot", "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.viewers.Add(1)
	defer s.viewers.Add(-1)
	slog.InfoContext(r.Context(), "scoreboard viewer connected", "remote", r.RemoteAddr, "viewers", s.Viewers())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// viewers only send control frames; reading notices when they go away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(s.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					slog.Debug("scoreboard viewer read", "remote", r.RemoteAddr, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// a ping has to be answered before the read deadline passes
	pinger := time.NewTicker(s.pongWait * 9 / 10)
	defer pinger.Stop()

	if err := s.push(ctx, conn); err != nil {
		slog.InfoContext(ctx, "scoreboard viewer dropped", "remote", r.RemoteAddr, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "scoreboard closing"),
				time.Now().Add(time.Second))
			return
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.InfoContext(ctx, "scoreboard viewer dropped", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.push(ctx, conn); err != nil {
				slog.InfoContext(ctx, "scoreboard viewer dropped", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (s *Server) push(ctx context.Context, conn *websocket.Conn) error {
	st, err := s.src.Status(ctx)
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(st); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
