// Package physics is a minimal raycasting world: named colliders and a
// nearest-hit ray query.
package physics

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dontlook/stalker/pkg/core"
)

var (
	// ErrDuplicateBody is returned when a body id is already registered.
	ErrDuplicateBody = errors.New("body already registered")
	// ErrUnknownBody is returned when a body id is not registered.
	ErrUnknownBody = errors.New("unknown body")
)

// Hit describes the first surface a ray reached.
type Hit struct {
	BodyID   string
	Distance float64
	Point    core.Vec3
}

// World holds colliders keyed by body id.
type World struct {
	mu     sync.RWMutex
	bodies map[string]Collider
	order  []string // insertion order, keeps hit ties deterministic
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{bodies: make(map[string]Collider)}
}

// Add registers a collider under id.
func (w *World) Add(id string, c Collider) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.bodies[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBody, id)
	}
	w.bodies[id] = c
	w.order = append(w.order, id)
	return nil
}

// Remove unregisters a body. Unknown ids are ignored.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.bodies[id]; !ok {
		return
	}
	delete(w.bodies, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// MoveTo recenters a sphere or translates a box so its center is at p.
func (w *World) MoveTo(id string, p core.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBody, id)
	}
	switch s := c.(type) {
	case Sphere:
		s.Center = p
		w.bodies[id] = s
	case Box:
		half := s.Max.Sub(s.Min).Mul(0.5)
		w.bodies[id] = Box{Min: p.Sub(half), Max: p.Add(half)}
	default:
		return fmt.Errorf("body %s cannot be moved", id)
	}
	return nil
}

// Len returns the number of registered bodies.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bodies)
}

// Raycast returns the nearest body hit by the ray from origin along dir
// within maxDist. dir does not need to be normalized; a zero dir or a
// non-positive maxDist never hits.
func (w *World) Raycast(origin, dir core.Vec3, maxDist float64) (Hit, bool) {
	if maxDist <= 0 || core.IsZero(dir) {
		return Hit{}, false
	}
	dir = dir.Normalize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, id := range w.order {
		t, ok := w.bodies[id].intersect(origin, dir, maxDist)
		if !ok || t >= best.Distance {
			continue
		}
		best = Hit{BodyID: id, Distance: t, Point: origin.Add(dir.Mul(t))}
		found = true
	}
	return best, found
}
