package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dontlook/stalker/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Vec3FromString parses "x,y,z" or "x,z" into a vector. The two-component
// form is a ground-plane point at elevation 0.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(coords), "[]"), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}

	if len(vals) == 2 {
		return core.Vec3{vals[0], 0, vals[1]}, nil
	}
	return core.Vec3{vals[0], vals[1], vals[2]}, nil
}

// Vec3ToString formats v the way Vec3FromString reads it.
func Vec3ToString(v core.Vec3) string {
	return strconv.FormatFloat(v.X(), 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Y(), 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Z(), 'f', -1, 64)
}
