package listener

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SshListener serves console sessions over ssh. Authentication is not
// required; the login user becomes the participant's proposed name.
type SshListener struct {
	addr   string
	cm     *ConnectionManager
	config *ssh.ServerConfig
}

func NewSshListener(addr string, cm *ConnectionManager, hostKey ssh.Signer) *SshListener {
	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(hostKey)

	return &SshListener{
		addr:   addr,
		cm:     cm,
		config: config,
	}
}

// LoadOrGenerateHostKey reads a PEM private key from path. An empty path
// yields a fresh ed25519 key that lives as long as the process.
func LoadOrGenerateHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		slog.Warn("no ssh host key configured, using an ephemeral key")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating host key: %w", err)
		}
		return ssh.NewSignerFromKey(priv)
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host key %q: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing host key %q: %w", path, err)
	}
	return signer, nil
}

func (l *SshListener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening for ssh on %s: %w", l.addr, err)
	}
	return l.serve(ctx, ln)
}

// serve accepts on ln until ctx is done, then waits for every session.
func (l *SshListener) serve(ctx context.Context, ln net.Listener) error {
	slog.InfoContext(ctx, "listening for ssh", "addr", ln.Addr().String())

	sessions, endSessions := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	defer func() {
		endSessions()
		wg.Wait()
	}()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.WarnContext(ctx, "accepting ssh connection", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.handleConnection(sessions, conn)
		}()
	}
}

func (l *SshListener) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, l.config)
	if err != nil {
		slog.WarnContext(ctx, "ssh handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	slog.InfoContext(ctx, "ssh connection established", "remote", conn.RemoteAddr(), "user", sshConn.User())

	stop := context.AfterFunc(ctx, func() { sshConn.Close() })
	defer stop()

	ctx = WithIdentity(ctx, sshConn.User())
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "only session channels are served")
			continue
		}
		l.serveChannel(ctx, newChan)
	}
}

// serveChannel runs one console session once the client asks for a shell.
func (l *SshListener) serveChannel(ctx context.Context, newChan ssh.NewChannel) {
	ch, requests, err := newChan.Accept()
	if err != nil {
		slog.WarnContext(ctx, "accepting ssh channel", "error", err)
		return
	}
	defer ch.Close()

	shell := make(chan struct{})
	go func() {
		opened := false
		for req := range requests {
			// pty requests are refused so the client keeps local echo
			ok := req.Type == "shell" && !opened
			req.Reply(ok, nil)
			if ok {
				opened = true
				close(shell)
			}
		}
	}()

	select {
	case <-shell:
		l.cm.AcceptConnection(ctx, newCRLFReadWriter(ch))
	case <-ctx.Done():
	}
}
