// Package scenario loads YAML scenario files and turns them into host
// commands: the world and pursuer setup, then a per-tick target script.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/dontlook/stalker/internal/geo"
	"github.com/dontlook/stalker/internal/parser"
	"github.com/dontlook/stalker/internal/worker"
	"github.com/dontlook/stalker/pkg/core"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is returned for scenario files that load but make no sense.
var ErrInvalidScenario = errors.New("invalid scenario")

// Command is one host command with string arguments.
type Command struct {
	Name string
	Args []string
}

// Vec is a YAML coordinate: [x, y, z], or [x, z] on the ground.
type Vec []float64

// Vec3 converts v, reporting whether it has a usable length.
func (v Vec) Vec3() (core.Vec3, error) {
	switch len(v) {
	case 2:
		return core.Vec3{v[0], 0, v[1]}, nil
	case 3:
		return core.Vec3{v[0], v[1], v[2]}, nil
	default:
		return core.Vec3{}, fmt.Errorf("%w: coordinate needs 2 or 3 values, got %d", ErrInvalidScenario, len(v))
	}
}

// Scenario is a scenario file.
type Scenario struct {
	Name   string  `yaml:"name"`
	Policy string  `yaml:"policy"`
	Dt     float64 `yaml:"dt"`
	Ticks  int     `yaml:"ticks"`

	Pursuers  []Pursuer  `yaml:"pursuers"`
	Obstacles []Obstacle `yaml:"obstacles"`
	Target    *Target    `yaml:"target"`
	Script    []Step     `yaml:"script"`
}

// Pursuer places a pursuer. Omitted tuning falls back to the defaults.
type Pursuer struct {
	Name     string   `yaml:"name"`
	Position Vec      `yaml:"position"`
	Radius   *float64 `yaml:"radius"`
	FOV      *float64 `yaml:"fov"`
	Speed    *float64 `yaml:"speed"`
	Debounce *int     `yaml:"debounce"`
}

// Settings merges the pursuer's tuning over defaults.
func (p Pursuer) Settings(defaults core.PursuerSettings) core.PursuerSettings {
	s := defaults
	if p.Radius != nil {
		s.DetectionRadius = *p.Radius
	}
	if p.FOV != nil {
		s.FieldOfView = *p.FOV
	}
	if p.Speed != nil {
		s.MoveSpeed = *p.Speed
	}
	if p.Debounce != nil {
		s.DebounceTicks = *p.Debounce
	}
	return s
}

// Obstacle is a static collider.
type Obstacle struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // box, sphere or prism

	Min Vec `yaml:"min"`
	Max Vec `yaml:"max"`

	Center Vec     `yaml:"center"`
	Radius float64 `yaml:"radius"`

	// Footprint is a WKT polygon in the XZ plane.
	Footprint string  `yaml:"footprint"`
	MinY      float64 `yaml:"minY"`
	MaxY      float64 `yaml:"maxY"`
}

// Target is the observer's initial state.
type Target struct {
	Position  Vec `yaml:"position"`
	Forward   Vec `yaml:"forward"`
	Viewpoint Vec `yaml:"viewpoint"`
}

// Step changes the target before tick At runs. Move and Face may be
// combined; Clear and Restore stand alone.
type Step struct {
	At      int  `yaml:"at"`
	Move    Vec  `yaml:"move"`
	Face    Vec  `yaml:"face"`
	Clear   bool `yaml:"clear"`
	Restore bool `yaml:"restore"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening scenario: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads scenario YAML from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("error decoding scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(s.Script, func(i, j int) bool { return s.Script[i].At < s.Script[j].At })
	return &s, nil
}

// Validate checks the parts a host command parser cannot: references,
// uniqueness and script shape.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}
	if s.Dt < 0 {
		return fmt.Errorf("%w: negative dt", ErrInvalidScenario)
	}
	if s.Ticks < 0 {
		return fmt.Errorf("%w: negative ticks", ErrInvalidScenario)
	}

	names := make(map[string]bool, len(s.Pursuers)+len(s.Obstacles))
	for i, p := range s.Pursuers {
		if p.Name == "" {
			return fmt.Errorf("%w: pursuer %d has no name", ErrInvalidScenario, i)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, p.Name)
		}
		names[p.Name] = true
		if _, err := p.Position.Vec3(); err != nil {
			return fmt.Errorf("pursuer %s position: %w", p.Name, err)
		}
	}
	for i, o := range s.Obstacles {
		if o.ID == "" {
			return fmt.Errorf("%w: obstacle %d has no id", ErrInvalidScenario, i)
		}
		if names[o.ID] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, o.ID)
		}
		names[o.ID] = true
		if _, err := o.args(); err != nil {
			return err
		}
	}
	if s.Target != nil {
		if _, err := s.Target.state(); err != nil {
			return err
		}
	}
	for _, st := range s.Script {
		if st.At < 1 {
			return fmt.Errorf("%w: script step at tick %d, ticks start at 1", ErrInvalidScenario, st.At)
		}
		if (st.Clear || st.Restore) && (st.Move != nil || st.Face != nil || st.Clear == st.Restore) {
			return fmt.Errorf("%w: step at %d mixes clear/restore with other actions", ErrInvalidScenario, st.At)
		}
		if !st.Clear && !st.Restore && st.Move == nil && st.Face == nil {
			return fmt.Errorf("%w: step at %d does nothing", ErrInvalidScenario, st.At)
		}
		for _, v := range []Vec{st.Move, st.Face} {
			if v == nil {
				continue
			}
			if _, err := v.Vec3(); err != nil {
				return fmt.Errorf("step at %d: %w", st.At, err)
			}
		}
	}
	return nil
}

// Setup returns the commands that build the session: init, obstacles,
// pursuers and the initial target. dt sets the session tick rate.
func (s *Scenario) Setup(dt float64, defaults core.PursuerSettings) ([]Command, error) {
	init := []string{s.Name, s.Policy}
	if dt > 0 {
		init = append(init, formatFloat(1/dt))
	}
	cmds := []Command{{Name: worker.CmdInitSession, Args: init}}

	for _, o := range s.Obstacles {
		args, err := o.args()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, Command{Name: worker.CmdAddObstacle, Args: args})
	}

	for _, p := range s.Pursuers {
		pos, err := p.Position.Vec3()
		if err != nil {
			return nil, fmt.Errorf("pursuer %s position: %w", p.Name, err)
		}
		st := p.Settings(defaults)
		cmds = append(cmds, Command{Name: worker.CmdAddPursuer, Args: []string{
			p.Name,
			geo.Vec3ToString(pos),
			formatFloat(st.DetectionRadius),
			formatFloat(st.FieldOfView),
			formatFloat(st.MoveSpeed),
			strconv.Itoa(st.DebounceTicks),
		}})
	}

	if s.Target != nil {
		t, err := s.Target.state()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, setTarget(t))
	}
	return cmds, nil
}

func (o Obstacle) args() ([]string, error) {
	switch o.Kind {
	case parser.KindBox:
		lo, err := o.Min.Vec3()
		if err != nil {
			return nil, fmt.Errorf("obstacle %s min: %w", o.ID, err)
		}
		hi, err := o.Max.Vec3()
		if err != nil {
			return nil, fmt.Errorf("obstacle %s max: %w", o.ID, err)
		}
		return []string{o.ID, o.Kind, geo.Vec3ToString(lo), geo.Vec3ToString(hi)}, nil
	case parser.KindSphere:
		c, err := o.Center.Vec3()
		if err != nil {
			return nil, fmt.Errorf("obstacle %s center: %w", o.ID, err)
		}
		return []string{o.ID, o.Kind, geo.Vec3ToString(c), formatFloat(o.Radius)}, nil
	case parser.KindPrism:
		if o.Footprint == "" {
			return nil, fmt.Errorf("%w: obstacle %s has no footprint", ErrInvalidScenario, o.ID)
		}
		return []string{o.ID, o.Kind, o.Footprint, formatFloat(o.MinY), formatFloat(o.MaxY)}, nil
	default:
		return nil, fmt.Errorf("%w: obstacle %s has unknown kind %q", ErrInvalidScenario, o.ID, o.Kind)
	}
}

func (t *Target) state() (*core.TargetState, error) {
	pos, err := t.Position.Vec3()
	if err != nil {
		return nil, fmt.Errorf("target position: %w", err)
	}
	fwd, err := t.Forward.Vec3()
	if err != nil {
		return nil, fmt.Errorf("target forward: %w", err)
	}
	out := &core.TargetState{Position: pos, Forward: fwd}
	if t.Viewpoint != nil {
		vp, err := t.Viewpoint.Vec3()
		if err != nil {
			return nil, fmt.Errorf("target viewpoint: %w", err)
		}
		out.Viewpoint = &vp
	}
	return out, nil
}

func setTarget(t *core.TargetState) Command {
	args := []string{geo.Vec3ToString(t.Position), geo.Vec3ToString(t.Forward)}
	if t.Viewpoint != nil {
		args = append(args, geo.Vec3ToString(*t.Viewpoint))
	}
	return Command{Name: worker.CmdSetTarget, Args: args}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
