// Package pursuit implements the stalker: a pursuer that advances on its
// target only while the target is not looking at it.
//
// Each Tick runs three steps in order: the visibility check, the pursuit
// decision and the facing update. The decision depends on the current tick's
// inputs only, so it can flip every tick when the target straddles a boundary.
// Settings.DebounceTicks adds optional hysteresis.
package pursuit

import (
	"github.com/dontlook/stalker/internal/animation"
	"github.com/dontlook/stalker/internal/vision"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Navigator moves the pursuer's body. It owns pathfinding.
type Navigator interface {
	SetDestination(p core.Vec3)
	Stop()
	Resume()
	Position() core.Vec3
}

// Animator receives the walking signal.
type Animator interface {
	SetBool(name string, v bool)
}

// Visibility answers whether the target sees the pursuer.
type Visibility interface {
	Visible(q vision.Query) bool
}

// Dependencies are the collaborators a host injects.
type Dependencies struct {
	Navigator Navigator
	Animator  Animator
	Vision    Visibility
}

// Agent is one pursuer.
type Agent struct {
	name      string
	settings  core.PursuerSettings
	deps      Dependencies
	transform core.Transform

	advancing    bool
	pendingTicks int
	started      bool
}

// New creates a pursuer. name doubles as the id of its collider for
// occlusion tests.
func New(name string, settings core.PursuerSettings, transform core.Transform, deps Dependencies) *Agent {
	return &Agent{
		name:      name,
		settings:  settings,
		deps:      deps,
		transform: transform,
	}
}

// Start is the one-time initialization hook. It puts the collaborators into
// the idle state and takes the body position from the navigator.
func (a *Agent) Start() {
	if a.started {
		return
	}
	a.started = true
	a.transform.Position = a.deps.Navigator.Position()
	a.deps.Navigator.Stop()
	a.deps.Animator.SetBool(animation.ParamWalking, false)
}

// Tick evaluates one frame. A nil target skips the tick without touching
// any state. dt is accepted for host symmetry; the decision itself is
// frame-rate independent.
func (a *Agent) Tick(target *core.TargetState, dt float64) core.Command {
	if target == nil {
		return core.Command{
			Skipped:   true,
			Advancing: a.advancing,
			Facing:    a.transform.Rotation,
		}
	}

	a.transform.Position = a.deps.Navigator.Position()
	pos := a.transform.Position

	looking := a.deps.Vision.Visible(vision.Query{
		Viewpoint: target.Origin(),
		Forward:   target.Forward,
		Subject:   pos,
		SubjectID: a.name,
		HalfFOV:   a.settings.HalfFieldOfView(),
		Radius:    a.settings.DetectionRadius,
	})
	distance := core.Distance(pos, target.Position)

	cmd := core.Command{
		TargetLooking: looking,
		Distance:      distance,
	}

	a.advancing = a.settle(!looking && distance < a.settings.DetectionRadius)
	cmd.Advancing = a.advancing

	if a.advancing {
		dst := target.Position
		a.deps.Navigator.Resume()
		a.deps.Navigator.SetDestination(dst)
		a.deps.Animator.SetBool(animation.ParamWalking, true)
		cmd.Destination = &dst
	} else {
		a.deps.Navigator.Stop()
		a.deps.Animator.SetBool(animation.ParamWalking, false)
		cmd.Stop = true
	}

	a.transform.LookAt(core.Flatten(target.Position, pos.Y()))
	cmd.Facing = a.transform.Rotation

	return cmd
}

// settle applies the optional debounce to a raw decision.
func (a *Agent) settle(want bool) bool {
	if a.settings.DebounceTicks <= 0 || want == a.advancing {
		a.pendingTicks = 0
		return want
	}
	a.pendingTicks++
	if a.pendingTicks >= a.settings.DebounceTicks {
		a.pendingTicks = 0
		return want
	}
	return a.advancing
}

// Name returns the pursuer name.
func (a *Agent) Name() string { return a.name }

// Settings returns the pursuer tuning.
func (a *Agent) Settings() core.PursuerSettings { return a.settings }

// Transform returns the current body transform.
func (a *Agent) Transform() core.Transform { return a.transform }

// Rotation returns the current facing.
func (a *Agent) Rotation() mgl64.Quat { return a.transform.Rotation }

// Advancing reports the cached motion flag.
func (a *Agent) Advancing() bool { return a.advancing }

// State returns the motion state.
func (a *Agent) State() core.MotionState {
	if a.advancing {
		return core.StateAdvancing
	}
	return core.StateIdle
}
