package scenario

import (
	"github.com/dontlook/stalker/internal/worker"
	"github.com/dontlook/stalker/pkg/core"
)

// Player replays a scenario script tick by tick.
type Player struct {
	steps  []Step
	next   int
	target *core.TargetState
	hidden *core.TargetState // the target while it is cleared
}

// NewPlayer starts a script at the scenario's initial target.
func (s *Scenario) NewPlayer() *Player {
	p := &Player{steps: s.Script}
	if s.Target != nil {
		// validated on load
		p.target, _ = s.Target.state()
	}
	return p
}

// Target returns the target the script currently describes, nil when cleared.
func (p *Player) Target() *core.TargetState {
	return p.target.Clone()
}

// Before returns the commands to apply before tick runs. Steps are applied in
// file order; the resulting target is sent once.
func (p *Player) Before(tick int) []Command {
	changed := false
	for p.next < len(p.steps) && p.steps[p.next].At <= tick {
		if p.apply(p.steps[p.next]) {
			changed = true
		}
		p.next++
	}
	if !changed {
		return nil
	}
	if p.target == nil {
		return []Command{{Name: worker.CmdClearTarget}}
	}
	return []Command{setTarget(p.target)}
}

// apply mutates the script state and reports whether the visible target changed.
func (p *Player) apply(st Step) bool {
	switch {
	case st.Clear:
		if p.target == nil {
			return false
		}
		p.hidden, p.target = p.target, nil
		return true
	case st.Restore:
		if p.target != nil || p.hidden == nil {
			return false
		}
		p.target, p.hidden = p.hidden, nil
		return true
	}

	t := p.target
	if t == nil {
		t = p.hidden
	}
	if t == nil {
		// nothing to move yet; the step creates the target
		t = &core.TargetState{Forward: core.Vec3{0, 0, 1}}
		p.target = t
	}
	if st.Move != nil {
		pos, _ := st.Move.Vec3()
		if t.Viewpoint != nil {
			// the eye travels with the body
			vp := t.Viewpoint.Add(pos.Sub(t.Position))
			t.Viewpoint = &vp
		}
		t.Position = pos
	}
	if st.Face != nil {
		t.Forward, _ = st.Face.Vec3()
	}
	return p.target != nil
}
