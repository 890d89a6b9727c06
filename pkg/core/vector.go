// pkg/core/vector.go
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point or direction in engine units. +Y is up, +Z is the default forward.
type Vec3 = mgl64.Vec3

// Up is the world up axis.
var Up = Vec3{0, 1, 0}

// Forward is the local forward axis of an unrotated body.
var Forward = Vec3{0, 0, 1}

// epsilon below which a vector is treated as having no direction.
const epsilon = 1e-9

// IsZero reports whether v has no usable direction.
func IsZero(v Vec3) bool {
	return v.Len() < epsilon
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return b.Sub(a).Len()
}

// AngleDeg returns the unsigned angle between a and b in degrees, in [0, 180].
// It returns NaN when either vector has no direction.
func AngleDeg(a, b Vec3) float64 {
	if IsZero(a) || IsZero(b) {
		return math.NaN()
	}
	cos := mgl64.Clamp(a.Normalize().Dot(b.Normalize()), -1, 1)
	return mgl64.RadToDeg(math.Acos(cos))
}

// Flatten returns p moved to elevation y.
func Flatten(p Vec3, y float64) Vec3 {
	return Vec3{p.X(), y, p.Z()}
}
