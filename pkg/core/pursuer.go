// pkg/core/pursuer.go
package core

import "fmt"

// Default pursuer tuning.
const (
	DefaultDetectionRadius = 20.0
	DefaultFieldOfView     = 60.0
	DefaultStopDistance    = 1.5
	DefaultMoveSpeed       = 3.5
)

// PursuerSettings are the externally settable constants of a pursuer.
type PursuerSettings struct {
	// DetectionRadius is the maximum distance at which the pursuer is seen or starts pursuing.
	DetectionRadius float64 `json:"detectionRadius" mapstructure:"detectionRadius" yaml:"radius"`
	// FieldOfView is the total width of the target's vision cone in degrees.
	FieldOfView float64 `json:"fieldOfView" mapstructure:"fieldOfView" yaml:"fov"`
	// StopDistance is how close the navigator gets to its destination before halting.
	StopDistance float64 `json:"stopDistance" mapstructure:"stopDistance" yaml:"stopDistance"`
	// MoveSpeed is the navigator speed in units per second.
	MoveSpeed float64 `json:"moveSpeed" mapstructure:"moveSpeed" yaml:"speed"`
	// DebounceTicks is how many consecutive ticks a new decision must hold before it
	// takes effect. Zero flips on every tick.
	DebounceTicks int `json:"debounceTicks" mapstructure:"debounceTicks" yaml:"debounce"`
}

// DefaultPursuerSettings returns the stock tuning.
func DefaultPursuerSettings() PursuerSettings {
	return PursuerSettings{
		DetectionRadius: DefaultDetectionRadius,
		FieldOfView:     DefaultFieldOfView,
		StopDistance:    DefaultStopDistance,
		MoveSpeed:       DefaultMoveSpeed,
	}
}

// HalfFieldOfView returns the half-angle compared against the angle to the pursuer.
func (s PursuerSettings) HalfFieldOfView() float64 {
	return s.FieldOfView / 2
}

// MotionState is the pursuer's two-state machine.
type MotionState uint8

const (
	StateIdle MotionState = iota
	StateAdvancing
)

func (s MotionState) String() string {
	if s == StateAdvancing {
		return "advancing"
	}
	return "idle"
}

// MarshalText encodes the state by name.
func (s MotionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *MotionState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "advancing":
		*s = StateAdvancing
	case "idle":
		*s = StateIdle
	default:
		return fmt.Errorf("unknown motion state %q", b)
	}
	return nil
}
