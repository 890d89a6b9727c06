package pursuit

import (
	"math/rand/v2"
	"testing"

	"github.com/dontlook/stalker/internal/animation"
	"github.com/dontlook/stalker/internal/physics"
	"github.com/dontlook/stalker/internal/vision"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNavigator struct {
	pos     core.Vec3
	dests   []core.Vec3
	stops   int
	resumes int
}

func (n *fakeNavigator) SetDestination(p core.Vec3) { n.dests = append(n.dests, p) }
func (n *fakeNavigator) Stop()                      { n.stops++ }
func (n *fakeNavigator) Resume()                    { n.resumes++ }
func (n *fakeNavigator) Position() core.Vec3        { return n.pos }

func (n *fakeNavigator) calls() int { return len(n.dests) + n.stops + n.resumes }

type fakeAnimator struct {
	sets []bool
}

func (a *fakeAnimator) SetBool(name string, v bool) {
	if name == animation.ParamWalking {
		a.sets = append(a.sets, v)
	}
}

// target at the origin looking down +Z
func originTarget() *core.TargetState {
	return &core.TargetState{Position: core.Vec3{0, 0, 0}, Forward: core.Vec3{0, 0, 1}}
}

func newTestAgent(pos core.Vec3, checker Visibility, settings core.PursuerSettings) (*Agent, *fakeNavigator, *fakeAnimator) {
	nav := &fakeNavigator{pos: pos}
	anim := &fakeAnimator{}
	a := New("stalker", settings, core.NewTransform(pos), Dependencies{
		Navigator: nav,
		Animator:  anim,
		Vision:    checker,
	})
	return a, nav, anim
}

func angleChecker() *vision.Checker {
	return vision.NewChecker(vision.PolicyAngle, nil)
}

func TestTick_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		pos       core.Vec3
		advancing bool
		looking   bool
	}{
		{"far and seen", core.Vec3{0, 0, 25}, false, true},
		{"far and behind", core.Vec3{0, 0, -25}, false, false},
		{"close behind", core.Vec3{0, 0, -5}, true, false},
		{"close in view", core.Vec3{0, 0, 5}, false, true},
		{"close at the side", core.Vec3{5, 0, 0}, true, false},
		{"exactly at the radius", core.Vec3{0, 0, -20}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, nav, anim := newTestAgent(tt.pos, angleChecker(), core.DefaultPursuerSettings())
			target := originTarget()

			cmd := a.Tick(target, 0.02)

			assert.False(t, cmd.Skipped)
			assert.Equal(t, tt.looking, cmd.TargetLooking)
			assert.Equal(t, tt.advancing, cmd.Advancing)
			assert.Equal(t, tt.advancing, a.Advancing())
			assert.InDelta(t, tt.pos.Len(), cmd.Distance, 1e-9)
			require.Len(t, anim.sets, 1)
			assert.Equal(t, tt.advancing, anim.sets[0])

			if tt.advancing {
				require.NotNil(t, cmd.Destination)
				assert.Equal(t, target.Position, *cmd.Destination)
				assert.Equal(t, []core.Vec3{target.Position}, nav.dests)
				assert.Equal(t, 1, nav.resumes)
				assert.Zero(t, nav.stops)
				assert.Equal(t, core.StateAdvancing, a.State())
			} else {
				assert.Nil(t, cmd.Destination)
				assert.True(t, cmd.Stop)
				assert.Empty(t, nav.dests)
				assert.Equal(t, 1, nav.stops)
				assert.Equal(t, core.StateIdle, a.State())
			}
		})
	}
}

func TestTick_WallHidesPursuer(t *testing.T) {
	pos := core.Vec3{0, 0, 5}

	build := func(withWall bool) *physics.World {
		w := physics.NewWorld()
		require.NoError(t, w.Add("stalker", physics.Sphere{Center: pos, Radius: 0.5}))
		if withWall {
			require.NoError(t, w.Add("wall", physics.Box{Min: core.Vec3{-3, -1, 2}, Max: core.Vec3{3, 3, 2.5}}))
		}
		return w
	}

	t.Run("occlusion policy advances behind a wall", func(t *testing.T) {
		a, _, _ := newTestAgent(pos, vision.NewChecker(vision.PolicyOcclusion, build(true)), core.DefaultPursuerSettings())
		cmd := a.Tick(originTarget(), 0.02)
		assert.False(t, cmd.TargetLooking)
		assert.True(t, cmd.Advancing)
	})

	t.Run("occlusion policy freezes in the open", func(t *testing.T) {
		a, _, _ := newTestAgent(pos, vision.NewChecker(vision.PolicyOcclusion, build(false)), core.DefaultPursuerSettings())
		cmd := a.Tick(originTarget(), 0.02)
		assert.True(t, cmd.TargetLooking)
		assert.False(t, cmd.Advancing)
	})

	t.Run("angle policy sees through walls", func(t *testing.T) {
		a, _, _ := newTestAgent(pos, vision.NewChecker(vision.PolicyAngle, build(true)), core.DefaultPursuerSettings())
		cmd := a.Tick(originTarget(), 0.02)
		assert.True(t, cmd.TargetLooking)
		assert.False(t, cmd.Advancing)
	})
}

func TestTick_AbsentTarget(t *testing.T) {
	a, nav, anim := newTestAgent(core.Vec3{3, 0, -4}, angleChecker(), core.DefaultPursuerSettings())

	first := a.Tick(originTarget(), 0.02)
	require.True(t, first.Advancing)

	before := a.Transform()
	navCalls := nav.calls()
	animCalls := len(anim.sets)

	cmd := a.Tick(nil, 0.02)

	assert.True(t, cmd.Skipped)
	assert.True(t, cmd.Advancing, "cached flag is reported unchanged")
	assert.Nil(t, cmd.Destination)
	assert.False(t, cmd.Stop)
	assert.Equal(t, before, a.Transform())
	assert.True(t, a.Advancing())
	assert.Equal(t, navCalls, nav.calls())
	assert.Equal(t, animCalls, len(anim.sets))
}

func TestTick_DestinationReissuedEveryTick(t *testing.T) {
	a, nav, _ := newTestAgent(core.Vec3{0, 0, -8}, angleChecker(), core.DefaultPursuerSettings())
	target := originTarget()

	for i := range 5 {
		target.Position = core.Vec3{float64(i), 0, 0}
		a.Tick(target, 0.02)
	}

	require.Len(t, nav.dests, 5)
	assert.Equal(t, core.Vec3{4, 0, 0}, nav.dests[4])
	assert.Equal(t, 5, nav.resumes)
}

func TestTick_Facing(t *testing.T) {
	tests := []struct {
		name string
		pos  core.Vec3
		yaw  float64
	}{
		{"west of target faces east", core.Vec3{-3, 0, 0}, 90},
		{"east of target faces west", core.Vec3{3, 0, 0}, -90},
		{"south of target faces north", core.Vec3{0, 0, -3}, 0},
		{"out of range still turns", core.Vec3{40, 0, 0}, -90},
		{"in view still turns", core.Vec3{0, 0, 5}, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := newTestAgent(tt.pos, angleChecker(), core.DefaultPursuerSettings())
			a.Tick(originTarget(), 0.02)

			yaw := a.Transform().Yaw()
			if tt.yaw == 180 && yaw < 0 {
				yaw += 360
			}
			assert.InDelta(t, tt.yaw, yaw, 1e-6)
		})
	}
}

func TestTick_FacingStaysLevel(t *testing.T) {
	a, _, _ := newTestAgent(core.Vec3{4, 3, 0}, angleChecker(), core.DefaultPursuerSettings())
	a.Tick(originTarget(), 0.02)

	fwd := a.Transform().Forward()
	assert.InDelta(t, 0, fwd.Y(), 1e-9)
	assert.InDelta(t, -1, fwd.X(), 1e-9)
}

func TestTick_FacingUnchangedDirectlyAbove(t *testing.T) {
	a, _, _ := newTestAgent(core.Vec3{0, 5, 0}, angleChecker(), core.DefaultPursuerSettings())
	before := a.Rotation()

	cmd := a.Tick(originTarget(), 0.02)

	assert.Equal(t, before, a.Rotation())
	assert.Equal(t, before, cmd.Facing)
}

func TestTick_OscillatesWithoutHysteresis(t *testing.T) {
	a, _, anim := newTestAgent(core.Vec3{0, 0, 5}, angleChecker(), core.DefaultPursuerSettings())
	target := originTarget()

	var states []bool
	for i := range 6 {
		if i%2 == 0 {
			target.Forward = core.Vec3{0, 0, 1}
		} else {
			target.Forward = core.Vec3{0, 0, -1}
		}
		states = append(states, a.Tick(target, 0.02).Advancing)
	}

	assert.Equal(t, []bool{false, true, false, true, false, true}, states)
	assert.Equal(t, states, anim.sets)
}

func TestTick_Debounce(t *testing.T) {
	settings := core.DefaultPursuerSettings()
	settings.DebounceTicks = 3
	a, _, _ := newTestAgent(core.Vec3{0, 0, 5}, angleChecker(), settings)
	target := originTarget()
	target.Forward = core.Vec3{0, 0, -1}

	var states []bool
	for range 4 {
		states = append(states, a.Tick(target, 0.02).Advancing)
	}
	assert.Equal(t, []bool{false, false, true, true}, states)

	// a single glance is filtered out
	target.Forward = core.Vec3{0, 0, 1}
	assert.True(t, a.Tick(target, 0.02).Advancing)
	target.Forward = core.Vec3{0, 0, -1}
	assert.True(t, a.Tick(target, 0.02).Advancing)
}

func TestTick_DecisionMatchesInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	settings := core.DefaultPursuerSettings()
	a, _, _ := newTestAgent(core.Vec3{}, angleChecker(), settings)
	nav := a.deps.Navigator.(*fakeNavigator)

	coord := func() float64 { return rng.Float64()*60 - 30 }

	for range 500 {
		nav.pos = core.Vec3{coord(), 0, coord()}
		target := &core.TargetState{
			Position: core.Vec3{coord(), 0, coord()},
			Forward:  core.Vec3{coord(), 0, coord()},
		}

		cmd := a.Tick(target, 0.02)

		looking := vision.InCone(vision.Query{
			Viewpoint: target.Position,
			Forward:   target.Forward,
			Subject:   nav.pos,
			HalfFOV:   settings.HalfFieldOfView(),
		})
		want := !looking && core.Distance(nav.pos, target.Position) < settings.DetectionRadius
		require.Equal(t, looking, cmd.TargetLooking)
		require.Equal(t, want, cmd.Advancing)
		require.Equal(t, want, cmd.Destination != nil)
		require.Equal(t, !want, cmd.Stop)
	}
}

func TestTick_ViewpointOverridesPosition(t *testing.T) {
	// the observation point sits ahead of the body
	a, _, _ := newTestAgent(core.Vec3{0, 0, 6}, angleChecker(), core.DefaultPursuerSettings())
	vp := core.Vec3{0, 0, 10}
	target := &core.TargetState{Position: core.Vec3{0, 0, 0}, Forward: core.Vec3{0, 0, 1}, Viewpoint: &vp}

	cmd := a.Tick(target, 0.02)

	assert.False(t, cmd.TargetLooking, "pursuer is behind the viewpoint")
	assert.True(t, cmd.Advancing)
}

func TestTick_ZeroRadiusNeverAdvances(t *testing.T) {
	settings := core.DefaultPursuerSettings()
	settings.DetectionRadius = 0
	a, _, _ := newTestAgent(core.Vec3{0, 0, -1}, vision.NewChecker(vision.PolicyOcclusion, nil), settings)

	cmd := a.Tick(originTarget(), 0.02)
	assert.False(t, cmd.TargetLooking)
	assert.False(t, cmd.Advancing)
}

func TestStart(t *testing.T) {
	a, nav, anim := newTestAgent(core.Vec3{1, 0, 1}, angleChecker(), core.DefaultPursuerSettings())
	nav.pos = core.Vec3{2, 0, 2}

	a.Start()
	a.Start()

	assert.Equal(t, core.Vec3{2, 0, 2}, a.Transform().Position)
	assert.Equal(t, 1, nav.stops)
	assert.Equal(t, []bool{false}, anim.sets)
	assert.Equal(t, mgl64.QuatIdent(), a.Rotation())
}
