package v1

import (
	"cmp"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dontlook/stalker/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session     *core.Session
	Pursuers    map[string]*PursuerRecord
	Transitions []core.Transition
}

// PursuerRecord groups a pursuer with all its tick records
type PursuerRecord struct {
	Pursuer core.Pursuer
	Ticks   []core.TickRecord
}

// NewSessionData groups flat rows, as read back from a database, by pursuer.
// Ticks of pursuers that were never registered still get a record.
func NewSessionData(s *core.Session, pursuers []core.Pursuer, ticks []core.TickRecord, transitions []core.Transition) *SessionData {
	data := &SessionData{
		Session:     s,
		Pursuers:    make(map[string]*PursuerRecord, len(pursuers)),
		Transitions: transitions,
	}
	for _, p := range pursuers {
		data.Pursuers[p.Name] = &PursuerRecord{Pursuer: p}
	}
	for _, r := range ticks {
		rec, ok := data.Pursuers[r.Pursuer]
		if !ok {
			rec = &PursuerRecord{Pursuer: core.Pursuer{Name: r.Pursuer}}
			data.Pursuers[r.Pursuer] = rec
		}
		rec.Ticks = append(rec.Ticks, r)
	}
	return data
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	export := Export{
		FormatVersion: FormatVersion,
		Pursuers:      make([]Pursuer, 0, len(data.Pursuers)),
		Events:        make([][]any, 0, len(data.Transitions)),
	}
	if s := data.Session; s != nil {
		export.Scenario = s.Scenario
		export.Policy = s.Policy
		export.StartTime = s.StartTime.UTC().Format(time.RFC3339)
		if !s.EndTime.IsZero() {
			export.EndTime = s.EndTime.UTC().Format(time.RFC3339)
		}
		export.TickRate = s.TickRate
		export.Config = s.Config
	}

	for _, rec := range data.Pursuers {
		p := Pursuer{
			ID:       rec.Pursuer.ID,
			Name:     rec.Pursuer.Name,
			Spawn:    vec(rec.Pursuer.Spawn),
			Settings: rec.Pursuer.Settings,
			Samples:  make([][]any, 0, len(rec.Ticks)),
		}

		ticks := slices.Clone(rec.Ticks)
		slices.SortStableFunc(ticks, func(a, b core.TickRecord) int { return cmp.Compare(a.Tick, b.Tick) })
		for _, r := range ticks {
			p.Samples = append(p.Samples, []any{
				r.Tick,
				vec(r.Position),
				round(r.Yaw),
				boolToInt(r.TargetLooking),
				round(r.Distance),
				boolToInt(r.Advancing),
				boolToInt(r.Skipped),
			})
			export.EndTick = max(export.EndTick, r.Tick)
		}
		export.Pursuers = append(export.Pursuers, p)
	}
	slices.SortFunc(export.Pursuers, func(a, b Pursuer) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})

	transitions := slices.Clone(data.Transitions)
	slices.SortStableFunc(transitions, func(a, b core.Transition) int { return cmp.Compare(a.Tick, b.Tick) })
	for _, t := range transitions {
		export.Events = append(export.Events, []any{t.Tick, "transition", t.Pursuer, t.From.String(), t.To.String()})
		export.EndTick = max(export.EndTick, t.Tick)
	}

	return export
}

// FileName returns the export file name for a session.
func FileName(s *core.Session, compress bool) string {
	name := "session"
	var stamp string
	if s != nil {
		name = sanitize(s.Scenario)
		stamp = s.StartTime.UTC().Format("20060102_150405")
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	if stamp == "" {
		return name + ext
	}
	return fmt.Sprintf("%s_%s%s", name, stamp, ext)
}

// Write encodes the export to path, gzipped when compress is set, creating
// the parent directory.
func Write(path string, export Export, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	if err := json.NewEncoder(w).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// Read decodes an export written by Write. Gzip input is detected by
// extension.
func Read(path string) (Export, error) {
	var export Export

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export: %w", err)
	}
	return export, nil
}

func sanitize(name string) string {
	if name == "" {
		return "session"
	}
	out := []rune(name)
	for i, r := range out {
		switch r {
		case ' ', ':', '/', '\\':
			out[i] = '_'
		}
	}
	return string(out)
}

func vec(v core.Vec3) []float64 {
	return []float64{round(v.X()), round(v.Y()), round(v.Z())}
}

// round keeps three decimals, enough for engine units.
func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
