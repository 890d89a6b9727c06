package parser

import (
	"fmt"
	"strings"

	"github.com/dontlook/stalker/internal/geo"
	"github.com/dontlook/stalker/internal/physics"
)

// Obstacle kinds accepted by :OBSTACLE:ADD:.
const (
	KindBox    = "box"
	KindSphere = "sphere"
	KindPrism  = "prism"
)

// ObstacleSpawn is a parsed :OBSTACLE:ADD: command.
type ObstacleSpawn struct {
	ID       string
	Kind     string
	Collider physics.Collider
}

// ParseObstacle parses id, kind and the kind's parameters:
//
//	box:    min, max
//	sphere: center, radius
//	prism:  footprint (WKT or a JSON ring of [x,z] pairs), minY, maxY
func (p *Parser) ParseObstacle(data []string) (ObstacleSpawn, error) {
	var spawn ObstacleSpawn
	if err := argCount(data, 4, 5); err != nil {
		return spawn, err
	}
	cleanArgs(data)

	if data[0] == "" {
		return spawn, fmt.Errorf("%w: empty obstacle id", ErrInvalidArgs)
	}
	spawn.ID = data[0]
	spawn.Kind = data[1]

	switch spawn.Kind {
	case KindBox:
		if err := argCount(data, 4, 4); err != nil {
			return spawn, err
		}
		lo, err := parseVec("min", data[2])
		if err != nil {
			return spawn, err
		}
		hi, err := parseVec("max", data[3])
		if err != nil {
			return spawn, err
		}
		if lo.X() > hi.X() || lo.Y() > hi.Y() || lo.Z() > hi.Z() {
			return spawn, fmt.Errorf("%w: box min %v exceeds max %v", ErrInvalidArgs, lo, hi)
		}
		spawn.Collider = physics.Box{Min: lo, Max: hi}

	case KindSphere:
		if err := argCount(data, 4, 4); err != nil {
			return spawn, err
		}
		center, err := parseVec("center", data[2])
		if err != nil {
			return spawn, err
		}
		radius, err := parseFloat("radius", data[3])
		if err != nil {
			return spawn, err
		}
		if radius <= 0 {
			return spawn, fmt.Errorf("%w: sphere radius must be positive", ErrInvalidArgs)
		}
		spawn.Collider = physics.Sphere{Center: center, Radius: radius}

	case KindPrism:
		if err := argCount(data, 5, 5); err != nil {
			return spawn, err
		}
		parse := geo.ParseFootprintWKT
		if strings.HasPrefix(data[2], "[") {
			parse = geo.ParseFootprintRing
		}
		footprint, err := parse(data[2])
		if err != nil {
			return spawn, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
		}
		minY, err := parseFloat("minY", data[3])
		if err != nil {
			return spawn, err
		}
		maxY, err := parseFloat("maxY", data[4])
		if err != nil {
			return spawn, err
		}
		if minY > maxY {
			return spawn, fmt.Errorf("%w: prism minY %v exceeds maxY %v", ErrInvalidArgs, minY, maxY)
		}
		spawn.Collider = physics.Prism{Footprint: footprint, MinY: minY, MaxY: maxY}

	default:
		return spawn, fmt.Errorf("%w: unknown obstacle kind %q", ErrInvalidArgs, spawn.Kind)
	}

	return spawn, nil
}
