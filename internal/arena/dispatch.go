package arena

import (
	"context"
	"fmt"

	"github.com/pixil98/go-arena/internal/messaging"
)

// Dispatch routes a host event to the matching operation. It satisfies
// messaging.Dispatcher.
func (a *Arena) Dispatch(ctx context.Context, kind string, ev messaging.Event) (any, error) {
	needsParticipant := map[string]bool{
		"connect": true, "quit": true, "join": true, "leave": true,
		"death": true, "respawn": true, "stats": true, "team": true,
	}
	if needsParticipant[kind] && ev.Participant == "" {
		return nil, fmt.Errorf("%s: participant is required", kind)
	}

	switch kind {
	case "connect":
		return nil, a.Connect(ctx, ev.Participant)
	case "quit":
		return nil, a.Disconnect(ctx, ev.Participant)
	case "join":
		return nil, a.Join(ctx, ev.Participant)
	case "leave":
		return nil, a.Leave(ctx, ev.Participant)
	case "death":
		return nil, a.Death(ctx, ev.Participant, ev.Killer, ev.Assists...)
	case "respawn":
		loc, ok, err := a.Respawn(ctx, ev.Participant)
		if err != nil || !ok {
			return nil, err
		}
		return loc, nil
	case "team":
		if ev.Arg == "" {
			return nil, a.LeaveTeam(ctx, ev.Participant)
		}
		return nil, a.JoinTeam(ctx, ev.Participant, ev.Arg)
	case "stats":
		return a.Stats(ctx, ev.Participant)
	case "forcestart":
		return nil, a.ForceStart(ctx)
	case "forceend":
		return nil, a.ForceEnd(ctx)
	case "setmap":
		return nil, a.SetMap(ctx, ev.Arg)
	case "nextmap":
		return a.NextMap(ctx)
	case "maps":
		return a.Maps(ctx)
	case "status":
		return a.Status(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
}
