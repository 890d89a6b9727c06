// Package navigation is a straight-line stand-in for a navmesh agent. It
// accepts a destination, can be stopped and resumed, and steers along the
// ground plane at a fixed speed until it is within its stopping distance.
package navigation

import (
	"math"
	"sync"

	"github.com/dontlook/stalker/pkg/core"
)

// Agent moves a body toward its destination on each Step.
type Agent struct {
	mu           sync.Mutex
	position     core.Vec3
	destination  *core.Vec3
	stopped      bool
	speed        float64
	stopDistance float64
	issued       uint64 // SetDestination calls, for diagnostics
}

// NewAgent creates a moving agent at position with no destination.
func NewAgent(position core.Vec3, speed, stopDistance float64) *Agent {
	return &Agent{
		position:     position,
		speed:        speed,
		stopDistance: stopDistance,
	}
}

// SetDestination replaces the current goal.
func (a *Agent) SetDestination(p core.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dst := p
	a.destination = &dst
	a.issued++
}

// Stop halts movement without clearing the destination.
func (a *Agent) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
}

// Resume allows movement again.
func (a *Agent) Resume() {
	a.mu.Lock()
	a.stopped = false
	a.mu.Unlock()
}

// IsStopped reports whether movement is halted.
func (a *Agent) IsStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Position returns the current position.
func (a *Agent) Position() core.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

// Destination returns the current goal, if any.
func (a *Agent) Destination() (core.Vec3, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destination == nil {
		return core.Vec3{}, false
	}
	return *a.destination, true
}

// DestinationsIssued returns how many times SetDestination was called.
func (a *Agent) DestinationsIssued() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issued
}

// Warp teleports the agent.
func (a *Agent) Warp(p core.Vec3) {
	a.mu.Lock()
	a.position = p
	a.mu.Unlock()
}

// Step advances the simulation by dt seconds and returns the new position.
// The agent keeps its elevation and never overshoots the stopping distance.
func (a *Agent) Step(dt float64) core.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped || a.destination == nil || dt <= 0 || a.speed <= 0 {
		return a.position
	}

	goal := core.Flatten(*a.destination, a.position.Y())
	offset := goal.Sub(a.position)
	remaining := offset.Len() - a.stopDistance
	if remaining <= 0 {
		return a.position
	}

	step := math.Min(a.speed*dt, remaining)
	a.position = a.position.Add(offset.Normalize().Mul(step))
	return a.position
}
