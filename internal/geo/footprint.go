package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Footprints live on the ground plane: geometry X is world X, geometry Y is world Z.

// ParseFootprintWKT parses a POLYGON or MULTIPOLYGON in WKT.
func ParseFootprintWKT(wkt string) (geom.Geometry, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("failed to parse footprint WKT: %w", err)
	}
	if !g.IsPolygon() && !g.IsMultiPolygon() {
		return geom.Geometry{}, fmt.Errorf("footprint must be a polygon, got %s", g.Type())
	}
	if g.IsEmpty() {
		return geom.Geometry{}, fmt.Errorf("footprint is empty")
	}
	return g, nil
}

// ParseFootprintRing parses a JSON array of ground coordinates into a polygon.
// Input format: "[[x1,z1],[x2,z2],...]". The ring is closed if needed.
func ParseFootprintRing(input string) (geom.Geometry, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.Geometry{}, fmt.Errorf("failed to parse footprint JSON: %w", err)
	}

	if len(coords) < 3 {
		return geom.Geometry{}, fmt.Errorf("footprint must have at least 3 points, got %d", len(coords))
	}

	flat := make([]float64, 0, (len(coords)+1)*2)
	for i, c := range coords {
		if len(c) < 2 {
			return geom.Geometry{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flat = append(flat, c[0], c[1])
	}
	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		flat = append(flat, first[0], first[1])
	}

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("invalid footprint ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("invalid footprint: %w", err)
	}
	return poly.AsGeometry(), nil
}
