// pkg/core/target.go
package core

// TargetState is what a pursuer can read about the observer it stalks.
// A nil *TargetState means the target reference is absent.
type TargetState struct {
	Position Vec3 `json:"position"`
	Forward  Vec3 `json:"forward"`
	// Viewpoint is the observation origin when it differs from Position (a head or camera).
	Viewpoint *Vec3 `json:"viewpoint,omitempty"`
}

// Origin returns the point the target observes from.
func (t *TargetState) Origin() Vec3 {
	if t.Viewpoint != nil {
		return *t.Viewpoint
	}
	return t.Position
}

// Clone returns a deep copy of t.
func (t *TargetState) Clone() *TargetState {
	if t == nil {
		return nil
	}
	c := *t
	if t.Viewpoint != nil {
		vp := *t.Viewpoint
		c.Viewpoint = &vp
	}
	return &c
}
