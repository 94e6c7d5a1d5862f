package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pixil98/go-arena/internal/arena"
	"github.com/pixil98/go-arena/internal/display"
)

var errQuit = errors.New("quit")

type command struct {
	name    string
	aliases []string
	usage   string
	help    string
	admin   bool
	run     func(ctx context.Context, s *session, args []string) error
}

func (c *Console) builtins() []*command {
	return []*command{
		{name: "help", aliases: []string{"?"}, usage: "help", help: "List commands.", run: c.help},
		{name: "join", usage: "join", help: "Queue for the next match.", run: c.join},
		{name: "leave", usage: "leave", help: "Leave the lobby or the current match.", run: c.leave},
		{name: "status", usage: "status", help: "Show the match, lobby and team scores.", run: c.status},
		{name: "stats", usage: "stats [name]", help: "Show your stats or someone else's.", run: c.stats},
		{name: "top", usage: "top", help: "Show the leaderboard.", run: c.top},
		{name: "who", usage: "who", help: "List connected participants.", run: c.who},
		{name: "team", usage: "team [list|join <team>|leave]", help: "Pick the team you play for.", run: c.team},
		{name: "map", usage: "map [list|set <map>|next]", help: "List maps. Admins can change the map.", run: c.mapCmd},
		{name: "forcestart", usage: "forcestart", help: "Start a match with the current lobby.", admin: true, run: c.forceStart},
		{name: "forceend", usage: "forceend", help: "End the running match.", admin: true, run: c.forceEnd},
		{name: "quit", aliases: []string{"exit"}, usage: "quit", help: "Disconnect.", run: c.quit},
	}
}

func (c *Console) help(_ context.Context, s *session, _ []string) error {
	tbl := display.NewTable("COMMAND", "DESCRIPTION")
	for _, cmd := range c.order {
		if cmd.admin && !s.admin {
			continue
		}
		tbl.AddRow(cmd.usage, cmd.help)
	}
	return s.println(tbl.String())
}

func (c *Console) join(ctx context.Context, s *session, _ []string) error {
	return userErr(c.svc.Join(ctx, s.id))
}

func (c *Console) leave(ctx context.Context, s *session, _ []string) error {
	return userErr(c.svc.Leave(ctx, s.id))
}

func (c *Console) status(ctx context.Context, s *session, _ []string) error {
	st, err := c.svc.Status(ctx)
	if err != nil {
		return userErr(err)
	}
	return s.println(renderStatus(st))
}

func (c *Console) stats(ctx context.Context, s *session, args []string) error {
	who := s.id
	if len(args) > 0 {
		who = strings.ToLower(args[0])
	}
	st, err := c.svc.Stats(ctx, who)
	if err != nil {
		return userErr(err)
	}
	return s.println(fmt.Sprintf("%s: %d kills, %d deaths, %d assists, %d points, %d won of %d played",
		who, st.Kills, st.Deaths, st.Assists, st.Points, st.GamesWon, st.GamesPlayed))
}

func (c *Console) top(ctx context.Context, s *session, _ []string) error {
	st, err := c.svc.Status(ctx)
	if err != nil {
		return userErr(err)
	}
	if len(st.Leaders) == 0 {
		return s.println("Nobody has played yet.")
	}

	tbl := display.NewTable("#", "NAME", "POINTS", "KILLS", "DEATHS", "WINS")
	for i, e := range st.Leaders {
		tbl.AddRow(strconv.Itoa(i+1), e.Participant, strconv.Itoa(e.Points), strconv.Itoa(e.Kills), strconv.Itoa(e.Deaths), strconv.Itoa(e.GamesWon))
	}
	return s.println(tbl.String())
}

func (c *Console) who(ctx context.Context, s *session, _ []string) error {
	online, err := c.svc.Online(ctx)
	if err != nil {
		return userErr(err)
	}
	return s.println(display.Wrap(fmt.Sprintf("%d connected: %s", len(online), strings.Join(online, ", "))))
}

func (c *Console) team(ctx context.Context, s *session, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "list":
		st, err := c.svc.Status(ctx)
		if err != nil {
			return userErr(err)
		}
		return s.println(renderTeams(st.Teams))
	case "join":
		if len(args) < 2 {
			return NewUserError("Usage: team join <team>")
		}
		return userErr(c.svc.JoinTeam(ctx, s.id, strings.ToLower(args[1])))
	case "leave":
		return userErr(c.svc.LeaveTeam(ctx, s.id))
	default:
		return NewUserError("Usage: team [list|join <team>|leave]")
	}
}

func (c *Console) mapCmd(ctx context.Context, s *session, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	if sub != "list" && !s.admin {
		return NewUserError("You are not allowed to do that.")
	}

	switch sub {
	case "list":
		ml, err := c.svc.Maps(ctx)
		if err != nil {
			return userErr(err)
		}
		return s.println(renderMaps(ml))
	case "set":
		if len(args) < 2 {
			return NewUserError("Usage: map set <map>")
		}
		if err := c.svc.SetMap(ctx, args[1]); err != nil {
			return userErr(err)
		}
		return s.println("Loading " + args[1] + ".")
	case "next":
		key, err := c.svc.NextMap(ctx)
		if err != nil {
			return userErr(err)
		}
		return s.println("Loading " + key + ".")
	default:
		return NewUserError("Usage: map [list|set <map>|next]")
	}
}

func (c *Console) forceStart(ctx context.Context, s *session, _ []string) error {
	if err := c.svc.ForceStart(ctx); err != nil {
		return userErr(err)
	}
	return s.println("Match started.")
}

func (c *Console) forceEnd(ctx context.Context, s *session, _ []string) error {
	if err := c.svc.ForceEnd(ctx); err != nil {
		return userErr(err)
	}
	return s.println("Match ended.")
}

func (c *Console) quit(context.Context, *session, []string) error {
	return errQuit
}

func renderStatus(st arena.Status) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "State: %s", st.State)
	if st.Map != "" {
		fmt.Fprintf(&sb, "   Map: %s (%s)", st.MapName, st.Map)
	}
	if st.State == "active" {
		fmt.Fprintf(&sb, "   Time left: %s", clock(st.Remaining))
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Lobby: %d/%d (max %d)", st.Lobby.Size, st.Lobby.Min, st.Lobby.Max)
	if st.Lobby.CountingDown {
		fmt.Fprintf(&sb, ", starting in %ds", st.Lobby.Countdown)
	}
	sb.WriteString("\n")

	if st.Outcome != nil && st.State != "active" {
		if st.Outcome.Draw() {
			fmt.Fprintf(&sb, "Last match: draw (%s)\n", st.Outcome.Reason)
		} else {
			fmt.Fprintf(&sb, "Last match: %s won (%s)\n", st.Outcome.Winner, st.Outcome.Reason)
		}
	}

	sb.WriteString(renderTeams(st.Teams))
	return sb.String()
}

func renderTeams(teams []arena.TeamStatus) string {
	tbl := display.NewTable("TEAM", "ID", "SCORE", "PLAYERS")
	for _, t := range teams {
		tbl.AddRow(t.Name, t.ID, strconv.Itoa(t.Score), strings.Join(t.Members, ", "))
	}
	return tbl.String()
}

func renderMaps(ml arena.MapList) string {
	inRotation := map[string]bool{}
	for _, k := range ml.Rotation {
		inRotation[k] = true
	}

	tbl := display.NewTable("MAP", "ROTATION", "CURRENT")
	for _, k := range ml.Available {
		rot, cur := "", ""
		if inRotation[k] {
			rot = "yes"
		}
		if k == ml.Current {
			cur = "*"
		}
		tbl.AddRow(k, rot, cur)
	}
	return tbl.String()
}

func clock(seconds int) string {
	d := time.Duration(seconds) * time.Second
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), seconds%60)
}
