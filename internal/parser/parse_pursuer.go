package parser

import (
	"fmt"
	"strconv"

	"github.com/dontlook/stalker/pkg/core"
)

// PursuerSpawn is a parsed :PURSUER:ADD: command.
type PursuerSpawn struct {
	Name     string
	Position core.Vec3
	Settings core.PursuerSettings
}

// ParsePursuer parses name, position and optional radius, field of view,
// move speed and debounce ticks.
func (p *Parser) ParsePursuer(data []string) (PursuerSpawn, error) {
	var spawn PursuerSpawn
	if err := argCount(data, 2, 6); err != nil {
		return spawn, err
	}
	cleanArgs(data)

	if data[0] == "" {
		return spawn, fmt.Errorf("%w: empty pursuer name", ErrInvalidArgs)
	}
	spawn.Name = data[0]

	pos, err := parseVec("position", data[1])
	if err != nil {
		return spawn, err
	}
	spawn.Position = pos

	spawn.Settings = p.defaults
	if len(data) > 2 {
		radius, err := parseFloat("radius", data[2])
		if err != nil {
			return spawn, err
		}
		spawn.Settings.DetectionRadius = radius
	}
	if len(data) > 3 {
		fov, err := parseFloat("fov", data[3])
		if err != nil {
			return spawn, err
		}
		if fov < 0 || fov > 360 {
			return spawn, fmt.Errorf("%w: fov %v out of [0, 360]", ErrInvalidArgs, fov)
		}
		spawn.Settings.FieldOfView = fov
	}
	if len(data) > 4 {
		speed, err := parseFloat("speed", data[4])
		if err != nil {
			return spawn, err
		}
		if speed < 0 {
			return spawn, fmt.Errorf("%w: negative speed %v", ErrInvalidArgs, speed)
		}
		spawn.Settings.MoveSpeed = speed
	}
	if len(data) > 5 {
		debounce, err := strconv.Atoi(data[5])
		if err != nil || debounce < 0 {
			return spawn, fmt.Errorf("%w: debounce %q is not a tick count", ErrInvalidArgs, data[5])
		}
		spawn.Settings.DebounceTicks = debounce
	}

	return spawn, nil
}
