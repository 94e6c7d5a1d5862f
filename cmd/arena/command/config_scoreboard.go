package command

import (
	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/scoreboard"
)

// ScoreboardConfig enables the websocket scoreboard when Addr is set.
type ScoreboardConfig struct {
	Addr     string `json:"addr,omitempty"`
	Interval string `json:"interval,omitempty"`
	PongWait string `json:"pong_wait,omitempty"`
}

func (c *ScoreboardConfig) validate() error {
	el := errors.NewErrorList()
	el.Add(validDuration("scoreboard.interval", c.Interval))
	el.Add(validDuration("scoreboard.pong_wait", c.PongWait))
	return el.Err()
}

func (c *ScoreboardConfig) buildScoreboard(src scoreboard.Source) *scoreboard.Server {
	var opts []scoreboard.ServerOpt
	if d, ok := parseDuration(c.Interval); ok {
		opts = append(opts, scoreboard.WithInterval(d))
	}
	if d, ok := parseDuration(c.PongWait); ok {
		opts = append(opts, scoreboard.WithPongWait(d))
	}
	return scoreboard.NewServer(c.Addr, src, opts...)
}
