package match

import (
	"slices"
	"time"
)

type State int

const (
	StateLobby State = iota
	StateCountdown
	StateActive
	StateEnding
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateCountdown:
		return "countdown"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateTransitioning:
		return "transitioning"
	default:
		return "lobby"
	}
}

// Session is one match. It is created at start and dropped when the next
// map is loaded.
type Session struct {
	ID        string
	MapKey    string
	State     State
	StartedAt time.Time
	EndedAt   time.Time
	TimeLimit time.Duration

	roster []string
}

func newSession(id, mapKey string, start time.Time, limit time.Duration, roster []string) *Session {
	s := &Session{
		ID:        id,
		MapKey:    mapKey,
		State:     StateActive,
		StartedAt: start,
		TimeLimit: limit,
	}
	for _, p := range roster {
		if !slices.Contains(s.roster, p) {
			s.roster = append(s.roster, p)
		}
	}
	return s
}

// Participants returns the roster in hand-off order.
func (s *Session) Participants() []string {
	return slices.Clone(s.roster)
}

func (s *Session) Has(p string) bool {
	return slices.Contains(s.roster, p)
}

func (s *Session) Size() int {
	return len(s.roster)
}

func (s *Session) Ended() bool {
	return !s.EndedAt.IsZero()
}

func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.Ended() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Remaining is never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	return max(s.TimeLimit-s.Elapsed(now), 0)
}

func (s *Session) remove(p string) bool {
	i := slices.Index(s.roster, p)
	if i < 0 {
		return false
	}
	s.roster = slices.Delete(s.roster, i, i+1)
	return true
}

// Outcome is how a session ended. Winner is a team id and empty on a draw.
type Outcome struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Winner    string `json:"winner,omitempty"`
}

func (o Outcome) Draw() bool {
	return o.Winner == ""
}
