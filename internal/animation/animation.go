package animation

import "sync"

// ParamWalking is the animator parameter that switches idle and walk states.
const ParamWalking = "IsWalking"

// Change is one parameter flip.
type Change struct {
	Param string
	Value bool
}

// Animator holds boolean state-machine parameters and remembers flips.
type Animator struct {
	mu      sync.Mutex
	params  map[string]bool
	changes []Change
}

// NewAnimator creates an animator with all parameters false.
func NewAnimator() *Animator {
	return &Animator{params: make(map[string]bool)}
}

// SetBool sets a parameter. Setting the current value is not a change.
func (a *Animator) SetBool(name string, v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.params[name] == v {
		return
	}
	a.params[name] = v
	a.changes = append(a.changes, Change{Param: name, Value: v})
}

// Bool returns a parameter value.
func (a *Animator) Bool(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.params[name]
}

// Changes returns a copy of all flips so far.
func (a *Animator) Changes() []Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Change, len(a.changes))
	copy(out, a.changes)
	return out
}
