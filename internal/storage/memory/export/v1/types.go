// Package v1 contains the v1 recording format written by the memory backend
// and by the export command.
package v1

import "github.com/dontlook/stalker/pkg/core"

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion int            `json:"formatVersion"`
	Scenario      string         `json:"scenario"`
	Policy        string         `json:"policy"`
	StartTime     string         `json:"startTime"`
	EndTime       string         `json:"endTime,omitempty"`
	TickRate      float64        `json:"tickRate"`
	EndTick       uint           `json:"endTick"`
	Config        map[string]any `json:"config,omitempty"`
	Pursuers      []Pursuer      `json:"pursuers"`
	// Events: [tick, "transition", pursuerName, from, to]
	Events [][]any `json:"events"`
}

// Pursuer is one pursuer and its samples.
type Pursuer struct {
	ID       uint                 `json:"id"`
	Name     string               `json:"name"`
	Spawn    []float64            `json:"spawn"`
	Settings core.PursuerSettings `json:"settings"`
	// Samples: [tick, [x, y, z], yaw, looking, distance, advancing, skipped]
	// with the flags as 0/1.
	Samples [][]any `json:"samples"`
}
