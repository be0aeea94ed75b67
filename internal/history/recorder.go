package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

const (
	defaultQueueSize     = 256
	defaultPruneInterval = time.Hour
	writeTimeout         = 5 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Repository receives the entries.
	Repository Repository

	// Retention is how long entries are kept. 0 disables pruning.
	Retention time.Duration

	// PruneInterval is how often old entries are deleted. Default: 1 hour.
	PruneInterval time.Duration

	// QueueSize bounds the number of events waiting to be written.
	// Default: 256.
	QueueSize int

	Logger Logger
}

// Recorder persists accessory change events from a single worker so that
// observers never block on the database. When the queue is full the event
// is dropped and counted.
type Recorder struct {
	repo          Repository
	retention     time.Duration
	pruneInterval time.Duration
	logger        Logger

	queue    chan Entry
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	dropped uint64
}

// NewRecorder creates a recorder. Call Start to begin writing.
func NewRecorder(cfg RecorderConfig) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	interval := cfg.PruneInterval
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &Recorder{
		repo:          cfg.Repository,
		retention:     cfg.Retention,
		pruneInterval: interval,
		logger:        cfg.Logger,
		queue:         make(chan Entry, size),
		done:          make(chan struct{}),
	}
}

// Observe queues an accessory change event. It is an accessory.Observer.
func (r *Recorder) Observe(e accessory.Event) {
	entry := Entry{
		AccessoryID:    e.AccessoryID,
		Service:        e.Service,
		Characteristic: e.Characteristic,
		Value:          e.Value,
		Source:         string(e.Source),
		CreatedAt:      e.Timestamp,
	}

	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.queue <- entry:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		if r.logger != nil {
			r.logger.Warn("history queue full, dropping event",
				"accessory", e.AccessoryID,
				"characteristic", e.Characteristic)
		}
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Start launches the writer and, when a retention is set, the pruner.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.writeLoop(ctx)

	if r.retention > 0 {
		r.wg.Add(1)
		go r.pruneLoop(ctx)
	}
}

// Stop drains the queued events and stops the workers. Safe to call
// multiple times.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Recorder) writeLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			return
		case <-r.done:
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, e); err != nil && r.logger != nil {
		r.logger.Error("failed to record history",
			"accessory", e.AccessoryID,
			"characteristic", e.Characteristic,
			"error", err)
	}
}

func (r *Recorder) pruneLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.prune(ctx)
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	n, err := r.repo.Prune(ctx, r.retention)
	if r.logger == nil {
		return
	}
	if err != nil {
		r.logger.Error("failed to prune history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("pruned history", "rows", n, "retention", r.retention.String())
	}
}
