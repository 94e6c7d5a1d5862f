package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/iammegalith/telnet"
)

// TelnetListener serves console sessions over plain telnet. Clients always
// pick their name at the prompt.
type TelnetListener struct {
	addr string
	cm   *ConnectionManager
}

func NewTelnetListener(addr string, cm *ConnectionManager) *TelnetListener {
	return &TelnetListener{
		addr: addr,
		cm:   cm,
	}
}

func (l *TelnetListener) Start(ctx context.Context) error {
	sessions, endSessions := context.WithCancel(context.WithoutCancel(ctx))
	h := &telnetSessions{ctx: sessions, cm: l.cm}
	svr := telnet.NewServer(l.addr, h)

	stop := context.AfterFunc(ctx, func() { svr.Stop() })
	defer stop()

	slog.InfoContext(ctx, "listening for telnet", "addr", l.addr)

	err := svr.ListenAndServe()
	endSessions()
	h.wg.Wait()

	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return fmt.Errorf("telnet address %s is already in use", l.addr)
	case err != nil && ctx.Err() == nil:
		return fmt.Errorf("serving telnet on %s: %w", l.addr, err)
	}
	return nil
}

// telnetSessions hands each telnet connection to the connection manager and
// keeps count so shutdown can wait for them.
type telnetSessions struct {
	ctx context.Context
	cm  *ConnectionManager
	wg  sync.WaitGroup
}

func (h *telnetSessions) HandleTelnet(conn *telnet.Connection) {
	h.wg.Add(1)
	defer h.wg.Done()

	h.cm.AcceptConnection(h.ctx, conn)
	if err := conn.Close(); err != nil {
		slog.Debug("closing telnet connection", "error", err)
	}
}
