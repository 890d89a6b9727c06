// Package influx writes pursuer tick metrics to InfluxDB, falling back to a
// gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementTick       = "pursuer_tick"
	MeasurementTransition = "pursuer_transition"
)

// BackupFileName is the line-protocol fallback written into the backup dir.
const BackupFileName = "influx_backup.lp.gz"

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client  influxdb2.Client
	Writers map[string]influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger

	cfg config.InfluxConfig

	mu           sync.Mutex // guards the backup writer
	backupFile   *os.File
	backupWriter *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{
		Writers: make(map[string]influxdb2_api.WriteAPI),
		Logger:  log,
		cfg:     cfg,
	}
}

// BackupPath returns the fallback file path.
func (m *Manager) BackupPath() string {
	return filepath.Join(m.cfg.BackupDir, BackupFileName)
}

// Connect establishes a connection to InfluxDB, or opens the backup file
// when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath()).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backupWriter != nil {
		return nil
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(m.BackupPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure the bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates the write API for the configured bucket.
func (m *Manager) CreateWriters() {
	bucket := m.cfg.Bucket
	m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
	m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

	errorsCh := m.Writers[bucket].Errors()
	go func(bucketName string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
				Msg("Error sending data to InfluxDB")
		}
	}(bucket, errorsCh)

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.backupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordTick writes a tick point to the configured bucket.
func (m *Manager) RecordTick(r *core.TickRecord, policy string) error {
	return m.WritePoint(m.cfg.Bucket, TickPoint(r, policy))
}

// RecordTransition writes a transition point to the configured bucket.
func (m *Manager) RecordTransition(t *core.Transition) error {
	return m.WritePoint(m.cfg.Bucket, TransitionPoint(t))
}

// RecordMetric writes a free-form point, typically parsed by ParseMetric.
func (m *Manager) RecordMetric(point *influxdb2_write.Point) error {
	return m.WritePoint(m.cfg.Bucket, point)
}

// Flush pushes buffered points to the server or the backup file.
func (m *Manager) Flush() error {
	for _, w := range m.Writers {
		w.Flush()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter == nil {
		return nil
	}
	return m.backupWriter.Flush()
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter == nil {
		return nil
	}
	err := errors.Join(m.backupWriter.Close(), m.backupFile.Close())
	m.backupWriter = nil
	m.backupFile = nil
	return err
}

// TickPoint converts a tick record into a point.
func TickPoint(r *core.TickRecord, policy string) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementTick).
		AddTag("session", strconv.FormatUint(uint64(r.SessionID), 10)).
		AddTag("pursuer", r.Pursuer).
		AddField("tick", int64(r.Tick)).
		AddField("simTime", r.SimTime).
		AddField("x", r.Position.X()).
		AddField("y", r.Position.Y()).
		AddField("z", r.Position.Z()).
		AddField("yaw", r.Yaw).
		AddField("looking", r.TargetLooking).
		AddField("distance", r.Distance).
		AddField("advancing", r.Advancing).
		AddField("skipped", r.Skipped).
		SetTime(r.Time)
	if policy != "" {
		p.AddTag("policy", policy)
	}
	return p
}

// TransitionPoint converts a transition into a point.
func TransitionPoint(t *core.Transition) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementTransition).
		AddTag("session", strconv.FormatUint(uint64(t.SessionID), 10)).
		AddTag("pursuer", t.Pursuer).
		AddTag("to", t.To.String()).
		AddField("tick", int64(t.Tick)).
		AddField("simTime", t.SimTime).
		AddField("from", t.From.String()).
		SetTime(t.Time)
}

// ParseMetric builds a point from host metric arguments:
// measurement name followed by "tag::name::value" and
// "field::type::name::value" entries, type being string, int, float or bool.
func ParseMetric(data []string) (*influxdb2_write.Point, error) {
	if len(data) == 0 || data[0] == "" {
		return nil, errors.New("metric needs a measurement name")
	}

	point := influxdb2_write.NewPointWithMeasurement(data[0])
	fields := 0

	for _, entry := range data[1:] {
		parts := strings.Split(entry, "::")
		switch {
		case parts[0] == "tag" && len(parts) >= 3:
			point.AddTag(parts[1], parts[2])
		case parts[0] == "field" && len(parts) >= 4:
			fieldType, fieldName, fieldValue := parts[1], parts[2], parts[3]
			switch fieldType {
			case "string":
				point.AddField(fieldName, fieldValue)
			case "int":
				intVal, err := strconv.Atoi(fieldValue)
				if err != nil {
					return nil, fmt.Errorf("error converting field value '%s' to int: %w", fieldValue, err)
				}
				point.AddField(fieldName, intVal)
			case "float":
				floatVal, err := strconv.ParseFloat(fieldValue, 64)
				if err != nil {
					return nil, fmt.Errorf("error converting field value '%s' to float: %w", fieldValue, err)
				}
				point.AddField(fieldName, floatVal)
			case "bool":
				boolVal, err := strconv.ParseBool(fieldValue)
				if err != nil {
					return nil, fmt.Errorf("error converting field value '%s' to bool: %w", fieldValue, err)
				}
				point.AddField(fieldName, boolVal)
			default:
				return nil, fmt.Errorf("unknown field type '%s'", fieldType)
			}
			fields++
		}
	}

	if fields == 0 {
		return nil, fmt.Errorf("metric %s has no fields", data[0])
	}
	return point, nil
}
