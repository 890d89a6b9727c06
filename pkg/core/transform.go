// pkg/core/transform.go
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a body's position and orientation.
type Transform struct {
	Position Vec3       `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// NewTransform returns an unrotated transform at p.
func NewTransform(p Vec3) Transform {
	return Transform{Position: p, Rotation: mgl64.QuatIdent()}
}

// Forward returns the body's forward direction in world space.
func (t Transform) Forward() Vec3 {
	return t.Rotation.Rotate(Forward)
}

// Yaw returns the heading about +Y in degrees, 0 facing +Z, 90 facing +X.
func (t Transform) Yaw() float64 {
	f := t.Forward()
	return mgl64.RadToDeg(math.Atan2(f.X(), f.Z()))
}

// LookAt snaps the rotation so that forward points at p.
// When p coincides with the position the rotation is left unchanged.
func (t *Transform) LookAt(p Vec3) {
	dir := p.Sub(t.Position)
	if IsZero(dir) {
		return
	}
	horizontal := math.Hypot(dir.X(), dir.Z())
	yaw := math.Atan2(dir.X(), dir.Z())
	pitch := -math.Atan2(dir.Y(), horizontal)
	t.Rotation = mgl64.QuatRotate(yaw, Up).Mul(mgl64.QuatRotate(pitch, Vec3{1, 0, 0}))
}

// YawRotation returns a rotation of yawDeg degrees about +Y.
func YawRotation(yawDeg float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(yawDeg), Up)
}
