package maps

import "time"

const (
	DefaultTimeLimit  = 1800
	DefaultMinPlayers = 2
	DefaultMaxPlayers = 16
)

// Vec is a point in world space.
type Vec struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Pose is a position plus facing.
type Pose struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Yaw   float64 `yaml:"yaw" json:"yaw"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
}

func (p Pose) Vec() Vec {
	return Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Boundary is an axis aligned box. Min is less than or equal to Max on every axis.
type Boundary struct {
	Min Vec
	Max Vec
}

func (b Boundary) Contains(v Vec) bool {
	return v.X >= b.Min.X && v.X <= b.Max.X &&
		v.Y >= b.Min.Y && v.Y <= b.Max.Y &&
		v.Z >= b.Min.Z && v.Z <= b.Max.Z
}

// Definition is a parsed map. It is never mutated after Load returns it.
type Definition struct {
	// DirID is the storage key: the directory the map was loaded from.
	DirID string
	// ID is the logical id declared inside the document.
	ID          string
	Name        string
	WorldName   string
	TimeLimit   int
	MinPlayers  int
	MaxPlayers  int
	WaitingArea Pose
	Boundary    Boundary
	SpawnPoints map[string][]Pose
	Objectives  []Objective
}

func (d *Definition) TimeLimitDuration() time.Duration {
	return time.Duration(d.TimeLimit) * time.Second
}

// SpawnPoint picks a team spawn, cycling through the list by index.
func (d *Definition) SpawnPoint(team string, index int) (Pose, bool) {
	points := d.SpawnPoints[team]
	if len(points) == 0 {
		return Pose{}, false
	}
	if index < 0 {
		index = -index
	}
	return points[index%len(points)], true
}
