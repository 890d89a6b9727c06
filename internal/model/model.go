// Package model holds the GORM schema used by the database backends.
package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Pursuer{},
	&TickSample{},
	&Transition{},
	&Performance{},
}

// Session is one simulation run.
type Session struct {
	gorm.Model
	Scenario  string         `json:"scenario" gorm:"size:200;index:idx_session_scenario"`
	Policy    string         `json:"policy" gorm:"size:32"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime   sql.NullTime   `json:"endTime"`
	TickRate  float32        `json:"tickRate"`
	Config    datatypes.JSON `json:"config"`

	Pursuers    []Pursuer
	TickSamples []TickSample
	Transitions []Transition
}

func (*Session) TableName() string {
	return "sessions"
}

// Pursuer is a pursuer registered in a session.
type Pursuer struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint           `json:"sessionId" gorm:"uniqueIndex:idx_pursuer_session_name"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Name      string         `json:"name" gorm:"size:64;uniqueIndex:idx_pursuer_session_name"`
	Spawn     geom.Point     `json:"spawn"`
	Settings  datatypes.JSON `json:"settings"`
}

func (*Pursuer) TableName() string {
	return "pursuers"
}

// TickSample is one recorded pursuer tick.
type TickSample struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_ticksample_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Pursuer   string    `json:"pursuer" gorm:"size:64;index:idx_ticksample_pursuer"`
	Tick      uint      `json:"tick" gorm:"index:idx_ticksample_tick"`
	SimTime   float64   `json:"simTime"`

	Position       geom.Point `json:"position"`       // XYZ, engine units
	Yaw            float32    `json:"yaw"`            // degrees about +Y
	HasTarget      bool       `json:"hasTarget"`      // false on skipped ticks
	TargetPosition geom.Point `json:"targetPosition"` // empty when HasTarget is false
	TargetLooking  bool       `json:"targetLooking"`
	Distance       float32    `json:"distance"`
	Advancing      bool       `json:"advancing"`
	Skipped        bool       `json:"skipped"`
}

func (*TickSample) TableName() string {
	return "tick_samples"
}

// Transition is a motion state change.
type Transition struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_transition_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Pursuer   string    `json:"pursuer" gorm:"size:64"`
	Tick      uint      `json:"tick"`
	SimTime   float64   `json:"simTime"`
	FromState string    `json:"from" gorm:"size:16"`
	ToState   string    `json:"to" gorm:"size:16"`
}

func (*Transition) TableName() string {
	return "transitions"
}

// Performance is a periodic status snapshot written by the monitor.
type Performance struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"index:idx_performance_time"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_performance_session_id"`
	Tick        uint      `json:"tick"`
	SimTime     float64   `json:"simTime"`
	Pursuers    uint16    `json:"pursuers"`
	Advancing   uint16    `json:"advancing"`
	Ticks       uint32    `json:"ticks"`
	Skipped     uint32    `json:"skipped"`
	Transitions uint32    `json:"transitions"`
	// PendingWrites is the number of records queued in the storage backend.
	PendingWrites uint32 `json:"pendingWrites"`
}

func (*Performance) TableName() string {
	return "performance"
}
