package scoreboard

import "time"

type ServerOpt func(*Server)

// WithInterval sets how often a snapshot is pushed to each viewer.
func WithInterval(d time.Duration) ServerOpt {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPongWait sets how long a viewer may go without answering a ping before
// its stream is closed. Pings are sent at nine tenths of it.
func WithPongWait(d time.Duration) ServerOpt {
	return func(s *Server) {
		if d > 0 {
			s.pongWait = d
		}
	}
}
