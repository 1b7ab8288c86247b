package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// ErrEmptyName is returned when a record has no limiter name.
var ErrEmptyName = errors.New("limiter name cannot be empty")

// DefaultCapacity is the number of records kept per limiter when none is configured.
const DefaultCapacity = 100

// Record is one finished window of a named limiter.
type Record struct {
	ID      string          `json:"id"`
	Limiter string          `json:"limiter"`
	Stat    tokenfence.Stat `json:"stat"`
	At      time.Time       `json:"at"`
}

// NewRecord stamps a Stat with a fresh ID and the given time.
func NewRecord(name string, stat tokenfence.Stat, at time.Time) Record {
	return Record{
		ID:      uuid.New().String(),
		Limiter: name,
		Stat:    stat,
		At:      at.UTC(),
	}
}

// Store defines the interface for window history storage
type Store interface {
	// Append adds a record for the named limiter
	Append(ctx context.Context, rec Record) error

	// History returns at most n records of the named limiter, newest first.
	// n <= 0 returns everything kept.
	History(ctx context.Context, name string, n int) ([]Record, error)

	// Clear removes all records
	Clear(ctx context.Context) error
}

// DefaultObserverBuffer is the number of records an Observer queues before
// it starts dropping.
const DefaultObserverBuffer = 256

// Observer writes finished windows to a Store from a background goroutine,
// so the Accept call that closes a window never waits on the store. When the
// queue is full the record is dropped and logged.
type Observer struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	records chan Record
	done    chan struct{}
}

var _ tokenfence.Observer = (*Observer)(nil)

// NewObserver starts an Observer appending to s. Each Append gets timeout
// (default one second). buffer <= 0 uses DefaultObserverBuffer. Callers must
// Close it to flush queued records.
func NewObserver(s Store, timeout time.Duration, buffer int, logger *slog.Logger) *Observer {
	if timeout <= 0 {
		timeout = time.Second
	}
	if buffer <= 0 {
		buffer = DefaultObserverBuffer
	}

	o := &Observer{
		store:   s,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		records: make(chan Record, buffer),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

// Observe queues the Stat of a finished window. It never blocks.
func (o *Observer) Observe(name string, stat tokenfence.Stat) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}

	select {
	case o.records <- NewRecord(name, stat, o.now()):
	default:
		o.log("window stat dropped, history queue full", "limiter", name)
	}
}

// Close stops accepting records and waits until the queued ones are stored.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		<-o.done
		return
	}
	o.closed = true
	close(o.records)
	o.mu.Unlock()

	<-o.done
}

func (o *Observer) run() {
	defer close(o.done)

	for rec := range o.records {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		err := o.store.Append(ctx, rec)
		cancel()

		if err != nil {
			o.log("failed to store window stat", "limiter", rec.Limiter, "error", err)
		}
	}
}

func (o *Observer) log(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
