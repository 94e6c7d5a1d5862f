package maps

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pixil98/go-errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// document mirrors map.yml. Pointers distinguish absent from zero.
type document struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name,omitempty"`
	WorldName   string            `yaml:"world-name,omitempty"`
	TimeLimit   *int              `yaml:"time-limit,omitempty"`
	MinPlayers  *int              `yaml:"min-players,omitempty"`
	MaxPlayers  *int              `yaml:"max-players,omitempty"`
	WaitingArea *Pose             `yaml:"waiting-area"`
	Boundary    *boundaryDocument `yaml:"game-boundary"`
	SpawnPoints map[string][]Pose `yaml:"spawn-points,omitempty"`
	Objectives  []objectiveDoc    `yaml:"objectives,omitempty"`
}

type boundaryDocument struct {
	Min *Vec `yaml:"min"`
	Max *Vec `yaml:"max"`
}

type objectiveDoc struct {
	Type     string   `yaml:"type"`
	Team     string   `yaml:"team,omitempty"`
	Location *Vec     `yaml:"location,omitempty"`
	Target   *int     `yaml:"target,omitempty"`
	Radius   *float64 `yaml:"radius,omitempty"`
}

var titleCaser = cases.Title(language.English)

// Parse decodes a map document. key is the storage key it was read from.
func Parse(key string, data []byte) (*Definition, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Key: key, Err: fmt.Errorf("decoding yaml: %w", err)}
	}

	el := errors.NewErrorList()

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		el.Add(fmt.Errorf("id is required"))
	}
	if doc.WaitingArea == nil {
		el.Add(fmt.Errorf("waiting-area is required"))
	}

	var boundary Boundary
	switch {
	case doc.Boundary == nil:
		el.Add(fmt.Errorf("game-boundary is required"))
	case doc.Boundary.Min == nil || doc.Boundary.Max == nil:
		el.Add(fmt.Errorf("game-boundary requires min and max"))
	default:
		boundary = Boundary{Min: *doc.Boundary.Min, Max: *doc.Boundary.Max}
		if boundary.Min.X > boundary.Max.X || boundary.Min.Y > boundary.Max.Y || boundary.Min.Z > boundary.Max.Z {
			el.Add(fmt.Errorf("game-boundary min must not exceed max"))
		}
	}

	def := &Definition{
		DirID:       key,
		ID:          id,
		Name:        strings.TrimSpace(doc.Name),
		WorldName:   strings.TrimSpace(doc.WorldName),
		TimeLimit:   intOr(doc.TimeLimit, DefaultTimeLimit),
		MinPlayers:  intOr(doc.MinPlayers, DefaultMinPlayers),
		MaxPlayers:  intOr(doc.MaxPlayers, DefaultMaxPlayers),
		Boundary:    boundary,
		SpawnPoints: map[string][]Pose{},
	}
	if doc.WaitingArea != nil {
		def.WaitingArea = *doc.WaitingArea
	}
	if def.Name == "" {
		def.Name = titleCaser.String(strings.NewReplacer("_", " ", "-", " ").Replace(id))
	}
	if def.WorldName == "" {
		def.WorldName = id
	}

	if def.TimeLimit <= 0 {
		el.Add(fmt.Errorf("time-limit must be positive"))
	}
	if def.MinPlayers < 1 {
		el.Add(fmt.Errorf("min-players must be at least 1"))
	}
	if def.MaxPlayers < def.MinPlayers {
		el.Add(fmt.Errorf("max-players must not be less than min-players"))
	}

	for team, points := range doc.SpawnPoints {
		def.SpawnPoints[team] = append([]Pose(nil), points...)
	}

	for i, od := range doc.Objectives {
		obj, err := parseObjective(key, i, od)
		if err != nil {
			el.Add(fmt.Errorf("objective %d: %w", i, err))
			continue
		}
		def.Objectives = append(def.Objectives, obj)
	}

	if err := el.Err(); err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}

	return def, nil
}

// parseObjective only fails on values that would break the evaluator.
// Objectives the host scores keep the map loadable even when incomplete.
func parseObjective(key string, i int, od objectiveDoc) (Objective, error) {
	obj := Objective{
		Kind:    parseObjectiveKind(od.Type),
		RawType: od.Type,
	}

	switch obj.Kind {
	case KindCaptureFlag:
		obj.Team = od.Team
		if obj.Team == "" {
			obj.Team = DefaultFlagTeam
		}
		if od.Location == nil {
			slog.Warn("objective has no location", "map", key, "objective", i, "type", od.Type)
			break
		}
		obj.Location = *od.Location
	case KindKillCount:
		obj.Target = intOr(od.Target, DefaultKillTarget)
		if obj.Target <= 0 {
			return obj, fmt.Errorf("kill_count target must be positive")
		}
	case KindControlPoint:
		obj.Radius = DefaultControlRange
		if od.Radius != nil {
			obj.Radius = *od.Radius
		}
		if od.Location == nil {
			slog.Warn("objective has no location", "map", key, "objective", i, "type", od.Type)
			break
		}
		obj.Location = *od.Location
	default:
		// kept so the evaluator can skip it explicitly
		obj.Team = od.Team
		if od.Location != nil {
			obj.Location = *od.Location
		}
		obj.Target = intOr(od.Target, 0)
		if od.Radius != nil {
			obj.Radius = *od.Radius
		}
	}

	return obj, nil
}

// Marshal encodes a definition in the map.yml schema. Every field is written
// explicitly so Parse(Marshal(d)) reproduces d.
func Marshal(def *Definition) ([]byte, error) {
	waiting := def.WaitingArea
	minV, maxV := def.Boundary.Min, def.Boundary.Max
	timeLimit, minPlayers, maxPlayers := def.TimeLimit, def.MinPlayers, def.MaxPlayers

	doc := document{
		ID:          def.ID,
		Name:        def.Name,
		WorldName:   def.WorldName,
		TimeLimit:   &timeLimit,
		MinPlayers:  &minPlayers,
		MaxPlayers:  &maxPlayers,
		WaitingArea: &waiting,
		Boundary:    &boundaryDocument{Min: &minV, Max: &maxV},
		SpawnPoints: def.SpawnPoints,
	}

	for _, obj := range def.Objectives {
		od := objectiveDoc{Type: obj.Kind.String()}
		switch obj.Kind {
		case KindCaptureFlag:
			loc := obj.Location
			od.Team = obj.Team
			od.Location = &loc
		case KindKillCount:
			target := obj.Target
			od.Target = &target
		case KindControlPoint:
			loc, radius := obj.Location, obj.Radius
			od.Location = &loc
			od.Radius = &radius
		default:
			od.Type = obj.RawType
			od.Team = obj.Team
			if obj.Target != 0 {
				target := obj.Target
				od.Target = &target
			}
			if obj.Radius != 0 {
				radius := obj.Radius
				od.Radius = &radius
			}
			if obj.Location != (Vec{}) {
				loc := obj.Location
				od.Location = &loc
			}
		}
		doc.Objectives = append(doc.Objectives, od)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding map %q: %w", def.DirID, err)
	}
	return data, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
