// pkg/core/session.go
package core

import "time"

// Session is one simulation run.
type Session struct {
	ID        uint           `json:"id"`
	Scenario  string         `json:"scenario"`
	Policy    string         `json:"policy"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime,omitzero"`
	TickRate  float64        `json:"tickRate"` // ticks per simulated second
	Config    map[string]any `json:"config,omitempty"`
}

// Pursuer is a pursuer as registered with a session.
type Pursuer struct {
	ID        uint            `json:"id"`
	SessionID uint            `json:"sessionId"`
	Name      string          `json:"name"`
	Spawn     Vec3            `json:"spawn"`
	Settings  PursuerSettings `json:"settings"`
}

// TickRecord is the recorded outcome of one pursuer tick.
type TickRecord struct {
	SessionID      uint      `json:"sessionId"`
	Pursuer        string    `json:"pursuer"`
	Tick           uint      `json:"tick"`
	SimTime        float64   `json:"simTime"`
	Time           time.Time `json:"time"`
	Position       Vec3      `json:"position"`
	Yaw            float64   `json:"yaw"`
	TargetPosition *Vec3     `json:"targetPosition,omitempty"`
	TargetLooking  bool      `json:"targetLooking"`
	Distance       float64   `json:"distance"`
	Advancing      bool      `json:"advancing"`
	Skipped        bool      `json:"skipped"`
}

// Transition records a pursuer switching motion state.
type Transition struct {
	SessionID uint        `json:"sessionId"`
	Pursuer   string      `json:"pursuer"`
	Tick      uint        `json:"tick"`
	SimTime   float64     `json:"simTime"`
	Time      time.Time   `json:"time"`
	From      MotionState `json:"from"`
	To        MotionState `json:"to"`
}
