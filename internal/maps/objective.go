package maps

import "fmt"

const (
	DefaultFlagTeam     = "red"
	DefaultKillTarget   = 50
	DefaultControlRange = 5.0
)

type ObjectiveKind int

const (
	KindUnknown ObjectiveKind = iota
	KindCaptureFlag
	KindKillCount
	KindControlPoint
)

func (k ObjectiveKind) String() string {
	switch k {
	case KindCaptureFlag:
		return "capture_flag"
	case KindKillCount:
		return "kill_count"
	case KindControlPoint:
		return "control_point"
	default:
		return "unknown"
	}
}

func parseObjectiveKind(s string) ObjectiveKind {
	switch s {
	case "capture_flag":
		return KindCaptureFlag
	case "kill_count":
		return KindKillCount
	case "control_point":
		return KindControlPoint
	default:
		return KindUnknown
	}
}

// Objective is a win condition. Which fields are meaningful depends on Kind:
// CaptureFlag uses Team and Location, KillCount uses Target, ControlPoint
// uses Location and Radius. Unknown keeps the declared type in RawType.
type Objective struct {
	Kind     ObjectiveKind
	RawType  string
	Team     string
	Location Vec
	Target   int
	Radius   float64
}

func (o Objective) String() string {
	switch o.Kind {
	case KindCaptureFlag:
		return fmt.Sprintf("capture_flag(team=%s)", o.Team)
	case KindKillCount:
		return fmt.Sprintf("kill_count(target=%d)", o.Target)
	case KindControlPoint:
		return fmt.Sprintf("control_point(radius=%g)", o.Radius)
	default:
		return fmt.Sprintf("unknown(%s)", o.RawType)
	}
}
