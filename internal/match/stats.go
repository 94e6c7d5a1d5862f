package match

import (
	"cmp"
	"slices"
)

// Stats are one participant's totals for the lifetime of the process.
type Stats struct {
	Kills       int `json:"kills"`
	Deaths      int `json:"deaths"`
	Assists     int `json:"assists"`
	Points      int `json:"points"`
	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`
}

type Entry struct {
	Participant string `json:"participant"`
	Stats
}

// Ledger keeps Stats per participant. Entries survive quits.
type Ledger struct {
	stats map[string]*Stats
}

func NewLedger() *Ledger {
	return &Ledger{stats: map[string]*Stats{}}
}

func (l *Ledger) Get(p string) Stats {
	if s, ok := l.stats[p]; ok {
		return *s
	}
	return Stats{}
}

func (l *Ledger) entry(p string) *Stats {
	s, ok := l.stats[p]
	if !ok {
		s = &Stats{}
		l.stats[p] = s
	}
	return s
}

// Leaders returns up to limit entries ordered by points, then kills, then
// name. A limit of zero or less returns everyone.
func (l *Ledger) Leaders(limit int) []Entry {
	out := make([]Entry, 0, len(l.stats))
	for p, s := range l.stats {
		out = append(out, Entry{Participant: p, Stats: *s})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Kills, a.Kills); c != 0 {
			return c
		}
		return cmp.Compare(a.Participant, b.Participant)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *Ledger) Reset() {
	l.stats = map[string]*Stats{}
}
