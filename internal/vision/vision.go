// Package vision decides whether an observer currently sees a subject.
//
// Two policies exist. PolicyAngle tests the vision cone only and sees through
// walls. PolicyOcclusion tests the cone and then casts a ray from the
// observer toward the subject; the subject is seen only if it is the first
// thing the ray hits. PolicyOcclusion is the default.
package vision

import (
	"fmt"
	"math"
	"strings"

	"github.com/dontlook/stalker/internal/physics"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Policy selects how visibility is decided.
type Policy string

const (
	PolicyAngle     Policy = "angle"
	PolicyOcclusion Policy = "occlusion"
)

// DefaultPolicy is used when none is configured.
const DefaultPolicy = PolicyOcclusion

// ParsePolicy converts a config string to a Policy. Empty selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case PolicyAngle:
		return PolicyAngle, nil
	case PolicyOcclusion:
		return PolicyOcclusion, nil
	default:
		return "", fmt.Errorf("unknown vision policy: %q", s)
	}
}

// Raycaster returns the nearest body along a ray.
type Raycaster interface {
	Raycast(origin, dir core.Vec3, maxDist float64) (physics.Hit, bool)
}

// Query is one visibility question.
type Query struct {
	Viewpoint core.Vec3 // observer eye
	Forward   core.Vec3 // observer look direction, any length
	Subject   core.Vec3 // position of the thing that may be seen
	SubjectID string    // collider id of the subject, for occlusion tests
	HalfFOV   float64   // degrees
	Radius    float64   // ray length for occlusion tests
}

// Checker answers visibility queries with a fixed policy.
type Checker struct {
	policy Policy
	rays   Raycaster
}

// NewChecker creates a checker. rays may be nil; an occlusion checker without
// a raycaster treats the subject as seen whenever it is in the cone and
// within Radius.
func NewChecker(policy Policy, rays Raycaster) *Checker {
	return &Checker{policy: policy, rays: rays}
}

// Policy returns the checker's policy.
func (c *Checker) Policy() Policy {
	return c.policy
}

// Visible reports whether the observer sees the subject.
func (c *Checker) Visible(q Query) bool {
	if c.policy == PolicyAngle {
		return InCone(q)
	}
	return Unoccluded(q, c.rays)
}

// InCone is the angle-only test: dot(forward, toSubject) > cos(halfFOV).
// The direction is always observer to subject.
func InCone(q Query) bool {
	toSubject := q.Subject.Sub(q.Viewpoint)
	if core.IsZero(toSubject) || core.IsZero(q.Forward) {
		return false
	}
	dot := q.Forward.Normalize().Dot(toSubject.Normalize())
	return dot > math.Cos(mgl64.DegToRad(q.HalfFOV))
}

// Unoccluded is the cone test followed by a line-of-sight raycast of length
// Radius. The subject is seen only if the first hit is the subject itself.
func Unoccluded(q Query, rays Raycaster) bool {
	if q.Radius <= 0 {
		return false
	}
	toSubject := q.Subject.Sub(q.Viewpoint)
	angle := core.AngleDeg(q.Forward, toSubject)
	if math.IsNaN(angle) || !(angle < q.HalfFOV) {
		return false
	}

	if rays == nil {
		return toSubject.Len() < q.Radius
	}
	hit, ok := rays.Raycast(q.Viewpoint, toSubject, q.Radius)
	return ok && hit.BodyID == q.SubjectID
}
