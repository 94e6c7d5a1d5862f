package arena

import (
	"context"

	"github.com/pixil98/go-arena/internal/lobby"
	"github.com/pixil98/go-arena/internal/match"
)

// leaderboardSize is how many leaders a Status carries.
const leaderboardSize = 10

type LobbyStatus struct {
	Size         int      `json:"size"`
	Min          int      `json:"min"`
	Max          int      `json:"max"`
	CountingDown bool     `json:"counting_down"`
	Countdown    int      `json:"countdown,omitempty"`
	Members      []string `json:"members"`
}

type TeamStatus struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Score   int      `json:"score"`
	Members []string `json:"members"`
}

// Status is a point in time view of the arena.
type Status struct {
	State     string         `json:"state"`
	Map       string         `json:"map,omitempty"`
	MapName   string         `json:"map_name,omitempty"`
	World     string         `json:"world,omitempty"`
	Session   string         `json:"session,omitempty"`
	Remaining int            `json:"remaining,omitempty"`
	Lobby     LobbyStatus    `json:"lobby"`
	Teams     []TeamStatus   `json:"teams"`
	Leaders   []match.Entry  `json:"leaders"`
	Outcome   *match.Outcome `json:"outcome,omitempty"`
}

func (a *Arena) Status(ctx context.Context) (Status, error) {
	var s Status
	err := a.do(ctx, func() error {
		s = a.status()
		return nil
	})
	return s, err
}

func (a *Arena) status() Status {
	s := Status{State: a.match.State().String()}
	if a.match.State() == match.StateLobby && a.lobby.State() == lobby.StateCountingDown {
		s.State = match.StateCountdown.String()
	}

	if def := a.match.CurrentMap(); def != nil {
		s.Map = def.DirID
		s.MapName = def.Name
	}
	if h := a.match.CurrentWorld(); h != nil {
		s.World = h.Name
	}
	if sess := a.match.Session(); sess != nil {
		s.Session = sess.ID
	}
	if rem, ok := a.match.Remaining(); ok {
		s.Remaining = int(rem.Seconds())
	}

	minP, maxP := a.lobby.Limits()
	secs, counting := a.lobby.Countdown()
	s.Lobby = LobbyStatus{
		Size:         a.lobby.Size(),
		Min:          minP,
		Max:          maxP,
		CountingDown: counting,
		Countdown:    secs,
		Members:      a.lobby.Members(),
	}

	for _, t := range a.teams.All() {
		s.Teams = append(s.Teams, TeamStatus{
			ID:      t.ID,
			Name:    t.Name,
			Color:   t.Color,
			Score:   t.Score(),
			Members: t.Members(),
		})
	}

	s.Leaders = a.match.Leaders(leaderboardSize)
	if o, ok := a.match.LastOutcome(); ok {
		s.Outcome = &o
	}
	return s
}
