// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background writer goroutine. The sqlite and postgres
// backends embed it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dontlook/stalker/internal/database"
	"github.com/dontlook/stalker/internal/model"
	"github.com/dontlook/stalker/internal/model/convert"
	"github.com/dontlook/stalker/internal/queue"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultMaxPending    = 200_000
	batchSize            = 500
)

// ErrNoSession is returned when a pursuer is added before StartSession.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// DBLog receives schema migration output.
	DBLog zerolog.Logger
	// FlushInterval is the writer period; zero means two seconds.
	FlushInterval time.Duration
	// MaxPending bounds each write queue while the database is unreachable;
	// zero means 200000 rows, negative is unbounded.
	MaxPending int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	TickSamples *queue.Queue[model.TickSample]
	Transitions *queue.Queue[model.Transition]
}

func newQueues(limit int) *queues {
	return &queues{
		TickSamples: queue.NewBounded[model.TickSample](limit),
		Transitions: queue.NewBounded[model.Transition](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64

	// serializes batch writes between the writer goroutine and Flush
	writeMu sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.MaxPending == 0 {
		deps.MaxPending = defaultMaxPending
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(deps.MaxPending),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine. Without a DB
// the backend only queues, which is useful in tests.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		return nil
	}

	if err := database.Migrate(b.deps.DB, b.deps.DBLog); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.startDBWriter()
	return nil
}

// Close stops the writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
		}
	})
	b.wg.Wait()
	return b.Flush()
}

// StartSession inserts the session row and stamps its ID on s.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		return nil
	}

	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	return nil
}

// SetSessionID sets the session rows are stamped with (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// SessionID returns the current session ID, zero before StartSession.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession writes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil {
		return nil
	}

	id := b.SessionID()
	if id == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).
		Update("end_time", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	return nil
}

// AddPursuer inserts a pursuer synchronously (not queued) because pursuers
// are low-volume and need immediate ID assignment.
func (b *Backend) AddPursuer(p *core.Pursuer) error {
	if b.deps.DB == nil {
		return nil
	}

	row := convert.CoreToPursuer(*p)
	if row.SessionID == 0 {
		row.SessionID = b.SessionID()
	}
	if row.SessionID == 0 {
		return ErrNoSession
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert pursuer %s: %w", p.Name, err)
	}

	p.ID = row.ID
	p.SessionID = row.SessionID
	return nil
}

// RecordTick converts and queues a tick sample.
func (b *Backend) RecordTick(r *core.TickRecord) error {
	b.queues.TickSamples.Push(convert.CoreToTickSample(*r))
	return nil
}

// RecordTransition converts and queues a transition.
func (b *Backend) RecordTransition(t *core.Transition) error {
	b.queues.Transitions.Push(convert.CoreToTransition(*t))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	return b.queues.TickSamples.Len() + b.queues.Transitions.Len()
}

// Dropped returns the number of rows evicted from full queues.
func (b *Backend) Dropped() int {
	return b.queues.TickSamples.Dropped() + b.queues.Transitions.Dropped()
}

// Flush writes every queue now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sessionID := b.SessionID()
	errTicks := writeQueue(b.deps.DB, b.queues.TickSamples, func(items []model.TickSample) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	})
	errTransitions := writeQueue(b.deps.DB, b.queues.Transitions, func(items []model.Transition) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	})

	if err := errors.Join(errTicks, errTransitions); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], prepare func([]T)) error {
	items := q.Take(0)
	if len(items) == 0 {
		return nil
	}
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&items, batchSize).Error
	})
	if err != nil {
		q.Requeue(items)
		return fmt.Errorf("error creating %T rows: %w", items, err)
	}
	return nil
}

// startDBWriter starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriter() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				if err := b.Flush(); err != nil {
					b.deps.Logger.Error("DB writer failed", "error", err, "pending", b.Pending(), "dropped", b.Dropped())
				}
			}
		}
	}()
}
