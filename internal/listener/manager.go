package listener

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

const fullMessage = "The arena is full, try again later.\n"

// SessionRunner serves one connection until it ends.
type SessionRunner interface {
	RunSession(ctx context.Context, rw io.ReadWriter) error
}

type ConnectionManager struct {
	runner SessionRunner
	max    int64
	active atomic.Int64
}

type ManagerOpt func(*ConnectionManager)

// WithMaxConnections caps concurrent sessions across every listener. Zero
// means no cap.
func WithMaxConnections(n int) ManagerOpt {
	return func(m *ConnectionManager) {
		m.max = int64(n)
	}
}

func NewConnectionManager(r SessionRunner, opts ...ManagerOpt) *ConnectionManager {
	m := &ConnectionManager{runner: r}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active returns the number of sessions being served.
func (m *ConnectionManager) Active() int {
	return int(m.active.Load())
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	id := uuid.NewString()

	if n := m.active.Add(1); m.max > 0 && n > m.max {
		m.active.Add(-1)
		slog.WarnContext(ctx, "refusing connection, at capacity", "conn", id, "max", m.max)
		io.WriteString(conn, fullMessage)
		return
	}
	defer m.active.Add(-1)

	slog.InfoContext(ctx, "connection opened", "conn", id)
	if err := m.runner.RunSession(ctx, conn); err != nil {
		slog.WarnContext(ctx, "console session", "conn", id, "error", err)
	}
	slog.InfoContext(ctx, "connection closed", "conn", id)
}
