// pkg/core/command.go
package core

import "github.com/go-gl/mathgl/mgl64"

// Command is the outcome of one pursuer tick.
type Command struct {
	// Skipped is set when the target was absent and nothing happened.
	Skipped bool `json:"skipped"`

	TargetLooking bool    `json:"targetLooking"`
	Distance      float64 `json:"distance"`
	Advancing     bool    `json:"advancing"`

	// Destination is the navigation goal issued this tick, nil when halted.
	Destination *Vec3 `json:"destination,omitempty"`
	Stop        bool  `json:"stop"`

	Facing mgl64.Quat `json:"facing"`
}

// State returns the motion state the command puts the pursuer in.
func (c Command) State() MotionState {
	if c.Advancing {
		return StateAdvancing
	}
	return StateIdle
}
