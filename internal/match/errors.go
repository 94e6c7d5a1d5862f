package match

import "errors"

var (
	ErrNotInLobby  = errors.New("not in lobby")
	ErrNoMap       = errors.New("no map selected")
	ErrNoWorld     = errors.New("no world available")
	ErrEmptyRoster = errors.New("empty roster")
	ErrNoMatch     = errors.New("no match in progress")
	ErrNoMaps      = errors.New("no usable maps")
	ErrUnknownMap  = errors.New("unknown map")
	ErrUnknownTeam = errors.New("unknown team")
)
