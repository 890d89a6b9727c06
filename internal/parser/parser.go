// Package parser converts host command arguments into domain values.
// It performs no side effects beyond logging.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dontlook/stalker/internal/geo"
	"github.com/dontlook/stalker/internal/vision"
	"github.com/dontlook/stalker/pkg/core"
)

// ErrInvalidArgs is returned for malformed or missing command arguments.
var ErrInvalidArgs = errors.New("invalid arguments")

// Parser provides pure []string -> domain struct conversion.
type Parser struct {
	logger   *slog.Logger
	defaults core.PursuerSettings
}

// NewParser creates a parser. defaults fill pursuer settings the host omits.
func NewParser(logger *slog.Logger, defaults core.PursuerSettings) *Parser {
	return &Parser{
		logger:   logger,
		defaults: defaults,
	}
}

// cleanArgs strips wrapping quotes and unescapes doubled quotes in place.
func cleanArgs(data []string) {
	for i, v := range data {
		data[i] = strings.ReplaceAll(strings.Trim(strings.TrimSpace(v), `"`), `""`, `"`)
	}
}

func argCount(data []string, min, max int) error {
	if len(data) < min || len(data) > max {
		if min == max {
			return fmt.Errorf("%w: want %d, got %d", ErrInvalidArgs, min, len(data))
		}
		return fmt.Errorf("%w: want %d to %d, got %d", ErrInvalidArgs, min, max, len(data))
	}
	return nil
}

func parseFloat(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidArgs, name, s)
	}
	return f, nil
}

func parseVec(name, s string) (core.Vec3, error) {
	v, err := geo.Vec3FromString(s)
	if err != nil {
		return core.Vec3{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidArgs, name, s, err)
	}
	return v, nil
}

// ParseSession parses :INIT:SESSION: args: scenario name, optional policy and
// optional tick rate in Hz.
func (p *Parser) ParseSession(data []string) (core.Session, error) {
	var session core.Session
	if err := argCount(data, 1, 3); err != nil {
		return session, err
	}
	cleanArgs(data)

	if data[0] == "" {
		return session, fmt.Errorf("%w: empty scenario name", ErrInvalidArgs)
	}
	session.Scenario = data[0]

	policyArg := ""
	if len(data) > 1 {
		policyArg = data[1]
	}
	policy, err := vision.ParsePolicy(policyArg)
	if err != nil {
		return session, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	session.Policy = string(policy)
	if len(data) > 2 {
		rate, err := parseFloat("tick rate", data[2])
		if err != nil {
			return session, err
		}
		if rate <= 0 {
			return session, fmt.Errorf("%w: tick rate must be positive", ErrInvalidArgs)
		}
		session.TickRate = rate
	}
	session.StartTime = time.Now()

	p.logger.Debug("Parsed session", "scenario", session.Scenario, "policy", session.Policy)
	return session, nil
}

// ParseTick parses :TICK: args: the frame time in seconds.
func (p *Parser) ParseTick(data []string) (float64, error) {
	if err := argCount(data, 1, 1); err != nil {
		return 0, err
	}
	cleanArgs(data)

	dt, err := parseFloat("dt", data[0])
	if err != nil {
		return 0, err
	}
	if dt <= 0 {
		return 0, fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidArgs, dt)
	}
	return dt, nil
}
