package parser

import (
	"github.com/dontlook/stalker/pkg/core"
)

// ParseTarget parses :TARGET:SET: args: position, forward and an optional
// viewpoint. A zero forward is accepted; such a target sees nothing.
func (p *Parser) ParseTarget(data []string) (*core.TargetState, error) {
	if err := argCount(data, 2, 3); err != nil {
		return nil, err
	}
	cleanArgs(data)

	pos, err := parseVec("position", data[0])
	if err != nil {
		return nil, err
	}
	fwd, err := parseVec("forward", data[1])
	if err != nil {
		return nil, err
	}

	target := &core.TargetState{Position: pos, Forward: fwd}
	if len(data) == 3 && data[2] != "" {
		vp, err := parseVec("viewpoint", data[2])
		if err != nil {
			return nil, err
		}
		target.Viewpoint = &vp
	}

	if core.IsZero(fwd) {
		p.logger.Debug("Target has no forward direction", "position", data[0])
	}
	return target, nil
}
