package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pixil98/go-arena/internal/arena"
	"github.com/pixil98/go-arena/internal/display"
	"github.com/pixil98/go-arena/internal/listener"
	"github.com/pixil98/go-arena/internal/match"
)

const DefaultBanner = "Welcome to the arena. Type 'help' once you are in."

var validName = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// Service is what the console drives. arena.Arena implements it.
type Service interface {
	Connect(ctx context.Context, p string) error
	Disconnect(ctx context.Context, p string) error
	Join(ctx context.Context, p string) error
	Leave(ctx context.Context, p string) error
	ForceStart(ctx context.Context) error
	ForceEnd(ctx context.Context) error
	SetMap(ctx context.Context, key string) error
	NextMap(ctx context.Context) (string, error)
	Maps(ctx context.Context) (arena.MapList, error)
	JoinTeam(ctx context.Context, p, teamID string) error
	LeaveTeam(ctx context.Context, p string) error
	Stats(ctx context.Context, p string) (match.Stats, error)
	Status(ctx context.Context) (arena.Status, error)
	Online(ctx context.Context) ([]string, error)
}

// Console runs text sessions for participants and administrators.
type Console struct {
	svc      Service
	hub      *Hub
	banner   string
	admins   map[string]bool
	commands map[string]*command
	order    []*command
}

func NewConsole(svc Service, hub *Hub, opts ...ConsoleOpt) *Console {
	c := &Console{
		svc:    svc,
		hub:    hub,
		banner: DefaultBanner,
		admins: map[string]bool{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.commands = map[string]*command{}
	for _, cmd := range c.builtins() {
		c.order = append(c.order, cmd)
		c.commands[cmd.name] = cmd
		for _, a := range cmd.aliases {
			c.commands[a] = cmd
		}
	}
	return c
}

type session struct {
	id    string
	admin bool
	w     io.Writer
}

func (s *session) println(text string) error {
	_, err := io.WriteString(s.w, text+"\n")
	return err
}

func (s *session) prompt() error {
	_, err := io.WriteString(s.w, "> ")
	return err
}

// RunSession logs a participant in over rw and serves commands until they
// quit, the connection drops or ctx is done.
func (c *Console) RunSession(ctx context.Context, rw io.ReadWriter) error {
	br := bufio.NewReader(rw)

	if _, err := io.WriteString(rw, display.Wrap(c.banner)+"\n"); err != nil {
		return err
	}

	name, err := c.login(ctx, br, rw)
	if err != nil {
		return fmt.Errorf("reading name: %w", err)
	}
	id := strings.ToLower(name)

	outbox, ok := c.hub.Register(id)
	if !ok {
		io.WriteString(rw, display.Capitalize(ErrNameInUse.Error())+".\n")
		return ErrNameInUse
	}
	defer c.hub.Unregister(id)

	if err := c.svc.Connect(ctx, id); err != nil {
		return fmt.Errorf("connecting %s: %w", id, err)
	}
	defer func() {
		if err := c.svc.Disconnect(context.WithoutCancel(ctx), id); err != nil {
			slog.Info("disconnecting participant", "participant", id, "error", err)
		}
	}()

	s := &session{id: id, admin: c.admins[id], w: rw}
	slog.InfoContext(ctx, "console session started", "participant", id, "admin", s.admin)

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-done:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	if err := s.prompt(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.println("\nThe arena is shutting down.")
			return nil

		case msg, ok := <-outbox:
			if !ok {
				return nil
			}
			if err := s.println("\n" + display.Wrap(msg)); err != nil {
				return err
			}
			if err := s.prompt(); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				default:
					return nil
				}
			}

			err := c.exec(ctx, s, line)
			if errors.Is(err, errQuit) {
				s.println("Goodbye!")
				return nil
			}
			var userErr *UserError
			if errors.As(err, &userErr) {
				err = s.println(userErr.Message)
			}
			if err != nil {
				return fmt.Errorf("running command: %w", err)
			}

			if err := s.prompt(); err != nil {
				return err
			}
		}
	}
}

// exec parses and runs one input line.
// login takes the name the transport authenticated, falling back to asking.
func (c *Console) login(ctx context.Context, br *bufio.Reader, w io.Writer) (string, error) {
	if name, ok := listener.IdentityFrom(ctx); ok && validName.MatchString(name) {
		return name, nil
	}

	return Prompt(br, w, "Name: ", WithMaxTries(3), WithValidator(func(s string) (bool, string) {
		if !validName.MatchString(s) {
			return false, "Names are 3 to 16 letters, digits or underscores.\n"
		}
		return true, ""
	}))
}

func (c *Console) exec(ctx context.Context, s *session, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	cmd, ok := c.commands[strings.ToLower(parts[0])]
	if !ok {
		return NewUserError(fmt.Sprintf("Unknown command %q. Type 'help' for a list.", parts[0]))
	}
	if cmd.admin && !s.admin {
		return NewUserError("You are not allowed to do that.")
	}
	return cmd.run(ctx, s, parts[1:])
}
