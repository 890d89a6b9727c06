package physics

import (
	"math"
	"testing"

	"github.com/dontlook/stalker/internal/geo"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaycast_Empty(t *testing.T) {
	w := NewWorld()
	_, ok := w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 10)
	assert.False(t, ok)
}

func TestRaycast_SphereHit(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("pursuer", Sphere{Center: core.Vec3{0, 1, 5}, Radius: 0.5}))

	hit, ok := w.Raycast(core.Vec3{0, 1, 0}, core.Vec3{0, 0, 2}, 20)
	require.True(t, ok)
	assert.Equal(t, "pursuer", hit.BodyID)
	assert.InDelta(t, 4.5, hit.Distance, 1e-9)
	assert.InDelta(t, 4.5, hit.Point.Z(), 1e-9)
}

func TestRaycast_OutOfRange(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("pursuer", Sphere{Center: core.Vec3{0, 0, 25}, Radius: 0.5}))

	_, ok := w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 20)
	assert.False(t, ok)
}

func TestRaycast_DegenerateInputs(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("pursuer", Sphere{Center: core.Vec3{0, 0, 5}, Radius: 1}))

	_, ok := w.Raycast(core.Vec3{}, core.Vec3{}, 20)
	assert.False(t, ok, "zero direction")

	_, ok = w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 0)
	assert.False(t, ok, "zero distance")
}

func TestRaycast_NearestWins(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("pursuer", Sphere{Center: core.Vec3{0, 1, 10}, Radius: 0.5}))
	require.NoError(t, w.Add("wall", Box{Min: core.Vec3{-2, 0, 4}, Max: core.Vec3{2, 3, 4.5}}))

	hit, ok := w.Raycast(core.Vec3{0, 1, 0}, core.Vec3{0, 0, 1}, 20)
	require.True(t, ok)
	assert.Equal(t, "wall", hit.BodyID)
	assert.InDelta(t, 4.0, hit.Distance, 1e-9)
}

func TestRaycast_BoxMissedAbove(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("low-wall", Box{Min: core.Vec3{-2, 0, 4}, Max: core.Vec3{2, 0.5, 4.5}}))

	_, ok := w.Raycast(core.Vec3{0, 1.7, 0}, core.Vec3{0, 0, 1}, 20)
	assert.False(t, ok)
}

func TestRaycast_PrismFootprint(t *testing.T) {
	footprint, err := geo.ParseFootprintWKT("POLYGON((-3 6,3 6,3 7,-3 7,-3 6))")
	require.NoError(t, err)

	w := NewWorld()
	require.NoError(t, w.Add("wall", Prism{Footprint: footprint, MinY: 0, MaxY: 3}))

	hit, ok := w.Raycast(core.Vec3{0, 1.5, 0}, core.Vec3{0, 0, 1}, 20)
	require.True(t, ok)
	assert.Equal(t, "wall", hit.BodyID)
	assert.InDelta(t, 6.0, hit.Distance, 1e-6)

	_, ok = w.Raycast(core.Vec3{0, 5, 0}, core.Vec3{0, 0, 1}, 20)
	assert.False(t, ok, "ray passes over the wall")

	_, ok = w.Raycast(core.Vec3{10, 1.5, 0}, core.Vec3{0, 0, 1}, 20)
	assert.False(t, ok, "ray passes beside the wall")
}

func TestRaycast_ConcavePrism(t *testing.T) {
	// U-shaped wall: legs at x in [1,2] and [5,6], open between them at z=0
	footprint, err := geo.ParseFootprintRing("[[1,-1],[2,-1],[2,0.5],[5,0.5],[5,-1],[6,-1],[6,1],[1,1]]")
	require.NoError(t, err)

	// the descending ray is inside the band only while over the given x range
	tests := []struct {
		name     string
		minY     float64
		maxY     float64
		wantHit  bool
		wantDist float64
	}{
		{name: "band over the gap", minY: 0.5, maxY: 1.5},
		{name: "band over the far leg", minY: -1.5, maxY: 0, wantHit: true, wantDist: 5 * math.Hypot(10, 9) / 10},
		{name: "band over the near leg", minY: 1.5, maxY: 3.5, wantHit: true, wantDist: 1 * math.Hypot(10, 9) / 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld()
			require.NoError(t, w.Add("u", Prism{Footprint: footprint, MinY: tt.minY, MaxY: tt.maxY}))

			hit, ok := w.Raycast(core.Vec3{0, 4, 0}, core.Vec3{10, -9, 0}, 20)
			require.Equal(t, tt.wantHit, ok, "hit %+v", hit)
			if tt.wantHit {
				assert.InDelta(t, tt.wantDist, hit.Distance, 1e-6)
			}
		})
	}
}

func TestRaycast_VerticalIntoPrism(t *testing.T) {
	footprint, err := geo.ParseFootprintWKT("POLYGON((-1 -1,1 -1,1 1,-1 1,-1 -1))")
	require.NoError(t, err)

	w := NewWorld()
	require.NoError(t, w.Add("pillar", Prism{Footprint: footprint, MinY: 0, MaxY: 2}))

	hit, ok := w.Raycast(core.Vec3{0, 5, 0}, core.Vec3{0, -1, 0}, 10)
	require.True(t, ok)
	assert.InDelta(t, 3.0, hit.Distance, 1e-9)

	_, ok = w.Raycast(core.Vec3{3, 5, 0}, core.Vec3{0, -1, 0}, 10)
	assert.False(t, ok)
}

func TestWorld_AddDuplicate(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("a", Sphere{Radius: 1}))
	err := w.Add("a", Sphere{Radius: 1})
	assert.ErrorIs(t, err, ErrDuplicateBody)
}

func TestWorld_MoveTo(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("pursuer", Sphere{Center: core.Vec3{0, 0, 50}, Radius: 0.5}))

	_, ok := w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 20)
	require.False(t, ok)

	require.NoError(t, w.MoveTo("pursuer", core.Vec3{0, 0, 5}))
	hit, ok := w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 20)
	require.True(t, ok)
	assert.Equal(t, "pursuer", hit.BodyID)

	assert.ErrorIs(t, w.MoveTo("ghost", core.Vec3{}), ErrUnknownBody)
}

func TestWorld_Remove(t *testing.T) {
	w := NewWorld()
	require.NoError(t, w.Add("a", Sphere{Center: core.Vec3{0, 0, 5}, Radius: 1}))
	require.NoError(t, w.Add("b", Sphere{Center: core.Vec3{0, 0, 8}, Radius: 1}))

	w.Remove("a")
	w.Remove("missing")
	assert.Equal(t, 1, w.Len())

	hit, ok := w.Raycast(core.Vec3{}, core.Vec3{0, 0, 1}, 20)
	require.True(t, ok)
	assert.Equal(t, "b", hit.BodyID)
}
