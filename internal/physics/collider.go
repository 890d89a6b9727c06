package physics

import (
	"math"

	"github.com/dontlook/stalker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

const parallelEpsilon = 1e-12

// Collider is a solid shape a ray can hit.
type Collider interface {
	// intersect returns the distance along dir (unit length) to the first
	// surface within maxDist, or false if there is none.
	intersect(origin, dir core.Vec3, maxDist float64) (float64, bool)
}

// Box is an axis-aligned box.
type Box struct {
	Min core.Vec3
	Max core.Vec3
}

func (b Box) intersect(origin, dir core.Vec3, maxDist float64) (float64, bool) {
	tMin, tMax := 0.0, maxDist
	for axis := 0; axis < 3; axis++ {
		lo, hi, ok := slab(origin[axis], dir[axis], b.Min[axis], b.Max[axis])
		if !ok {
			return 0, false
		}
		tMin = math.Max(tMin, lo)
		tMax = math.Min(tMax, hi)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

// slab returns the parameter interval in which o+d*t lies in [min,max] on one axis.
func slab(o, d, min, max float64) (float64, float64, bool) {
	if math.Abs(d) < parallelEpsilon {
		if o < min || o > max {
			return 0, 0, false
		}
		return math.Inf(-1), math.Inf(1), true
	}
	t0 := (min - o) / d
	t1 := (max - o) / d
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	return t0, t1, true
}

// Sphere is a ball, used for character bodies.
type Sphere struct {
	Center core.Vec3
	Radius float64
}

func (s Sphere) intersect(origin, dir core.Vec3, maxDist float64) (float64, bool) {
	oc := origin.Sub(s.Center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	if c <= 0 {
		// origin inside
		return 0, true
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 || t > maxDist {
		return 0, false
	}
	return t, true
}

// Prism is a ground footprint extruded between MinY and MaxY, used for walls
// and other level geometry authored as WKT.
type Prism struct {
	Footprint geom.Geometry
	MinY      float64
	MaxY      float64
}

func (p Prism) intersect(origin, dir core.Vec3, maxDist float64) (float64, bool) {
	yLo, yHi, ok := slab(origin.Y(), dir.Y(), p.MinY, p.MaxY)
	if !ok {
		return 0, false
	}

	hx, hz := dir.X(), dir.Z()
	hh := hx*hx + hz*hz

	if hh < parallelEpsilon {
		// vertical ray: inside the footprint or nothing
		pt, err := geom.XY{X: origin.X(), Y: origin.Z()}.AsPoint()
		if err != nil || !geom.Intersects(pt.AsGeometry(), p.Footprint) {
			return 0, false
		}
		return clip(math.Inf(-1), math.Inf(1), yLo, yHi, maxDist)
	}

	end := origin.Add(dir.Mul(maxDist))
	seg, err := geom.NewLineString(geom.NewSequence([]float64{origin.X(), origin.Z(), end.X(), end.Z()}, geom.DimXY))
	if err != nil {
		return 0, false
	}
	inter, err := geom.Intersection(seg.AsGeometry(), p.Footprint)
	if err != nil || inter.IsEmpty() {
		return 0, false
	}

	// each part is a collinear piece of the segment, so its coordinates span
	// one interval; gaps between parts of a concave footprint stay open
	best, found := math.Inf(1), false
	for _, part := range inter.Dump() {
		coords := part.DumpCoordinates()
		sLo, sHi := math.Inf(1), math.Inf(-1)
		for i := 0; i < coords.Length(); i++ {
			xy := coords.GetXY(i)
			s := ((xy.X-origin.X())*hx + (xy.Y-origin.Z())*hz) / hh
			sLo = math.Min(sLo, s)
			sHi = math.Max(sHi, s)
		}
		if enter, ok := clip(sLo, sHi, yLo, yHi, maxDist); ok && enter < best {
			best, found = enter, true
		}
	}
	return best, found
}

// clip intersects a ground span with the vertical slab and the ray range and
// returns the entry distance.
func clip(sLo, sHi, yLo, yHi, maxDist float64) (float64, bool) {
	enter := math.Max(math.Max(sLo, yLo), 0)
	exit := math.Min(math.Min(sHi, yHi), maxDist)
	if enter > exit {
		return 0, false
	}
	return enter, true
}
