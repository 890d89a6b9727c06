// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/dontlook/stalker/internal/model"
	"github.com/dontlook/stalker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// vecToPoint converts an engine-space vector to an XYZ point. Non-finite
// vectors become the empty point.
func vecToPoint(v core.Vec3) geom.Point {
	p, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X(), Y: v.Y()},
		Z:    v.Z(),
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ)
	}
	return p
}

// pointToVec converts an XYZ point back. Empty points yield false.
func pointToVec(p geom.Point) (core.Vec3, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}, false
	}
	return core.Vec3{c.XY.X, c.XY.Y, c.Z}, true
}

// toJSON marshals v, writing an empty object for nil values (including nil
// maps held in an interface) and for values that cannot be marshaled.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		Scenario:  s.Scenario,
		Policy:    s.Policy,
		StartTime: s.StartTime,
		TickRate:  float32(s.TickRate),
		Config:    toJSON(s.Config),
	}
	out.ID = s.ID
	if !s.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: s.EndTime, Valid: true}
	}
	return out
}

// SessionToCore converts a GORM model.Session back to core.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.ID,
		Scenario:  s.Scenario,
		Policy:    s.Policy,
		StartTime: s.StartTime,
		TickRate:  float64(s.TickRate),
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	if len(s.Config) > 0 {
		_ = json.Unmarshal(s.Config, &out.Config)
	}
	return out
}

// CoreToPursuer converts a core.Pursuer to a GORM model.Pursuer.
func CoreToPursuer(p core.Pursuer) model.Pursuer {
	return model.Pursuer{
		ID:        p.ID,
		SessionID: p.SessionID,
		Name:      p.Name,
		Spawn:     vecToPoint(p.Spawn),
		Settings:  toJSON(p.Settings),
	}
}

// PursuerToCore converts a GORM model.Pursuer back to core.
func PursuerToCore(p model.Pursuer) core.Pursuer {
	out := core.Pursuer{
		ID:        p.ID,
		SessionID: p.SessionID,
		Name:      p.Name,
	}
	out.Spawn, _ = pointToVec(p.Spawn)
	if len(p.Settings) > 0 {
		_ = json.Unmarshal(p.Settings, &out.Settings)
	}
	return out
}

// CoreToTickSample converts a core.TickRecord to a GORM model.TickSample.
func CoreToTickSample(r core.TickRecord) model.TickSample {
	out := model.TickSample{
		Time:          r.Time,
		SessionID:     r.SessionID,
		Pursuer:       r.Pursuer,
		Tick:          r.Tick,
		SimTime:       r.SimTime,
		Position:      vecToPoint(r.Position),
		Yaw:           float32(r.Yaw),
		TargetLooking: r.TargetLooking,
		Distance:      float32(r.Distance),
		Advancing:     r.Advancing,
		Skipped:       r.Skipped,
	}
	if r.TargetPosition != nil {
		out.HasTarget = true
		out.TargetPosition = vecToPoint(*r.TargetPosition)
	} else {
		out.TargetPosition = geom.NewEmptyPoint(geom.DimXYZ)
	}
	return out
}

// TickSampleToCore converts a GORM model.TickSample back to core.
func TickSampleToCore(s model.TickSample) core.TickRecord {
	out := core.TickRecord{
		SessionID:     s.SessionID,
		Pursuer:       s.Pursuer,
		Tick:          s.Tick,
		SimTime:       s.SimTime,
		Time:          s.Time,
		Yaw:           float64(s.Yaw),
		TargetLooking: s.TargetLooking,
		Distance:      float64(s.Distance),
		Advancing:     s.Advancing,
		Skipped:       s.Skipped,
	}
	out.Position, _ = pointToVec(s.Position)
	if s.HasTarget {
		if v, ok := pointToVec(s.TargetPosition); ok {
			out.TargetPosition = &v
		}
	}
	return out
}

// CoreToTransition converts a core.Transition to a GORM model.Transition.
func CoreToTransition(t core.Transition) model.Transition {
	return model.Transition{
		Time:      t.Time,
		SessionID: t.SessionID,
		Pursuer:   t.Pursuer,
		Tick:      t.Tick,
		SimTime:   t.SimTime,
		FromState: t.From.String(),
		ToState:   t.To.String(),
	}
}

// TransitionToCore converts a GORM model.Transition back to core.
// Unknown state names decode as idle.
func TransitionToCore(t model.Transition) core.Transition {
	out := core.Transition{
		SessionID: t.SessionID,
		Pursuer:   t.Pursuer,
		Tick:      t.Tick,
		SimTime:   t.SimTime,
		Time:      t.Time,
	}
	_ = out.From.UnmarshalText([]byte(t.FromState))
	_ = out.To.UnmarshalText([]byte(t.ToState))
	return out
}
