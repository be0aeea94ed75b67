package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// mockRepository records calls for assertions.
type mockRepository struct {
	mu        sync.Mutex
	entries   []Entry
	prunes    int
	recordErr error
	block     chan struct{}
}

func (m *mockRepository) Record(_ context.Context, e Entry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRepository) GetHistory(context.Context, string, string, int) ([]Entry, error) {
	return nil, nil
}

func (m *mockRepository) Prune(context.Context, time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes++
	return 1, nil
}

func (m *mockRepository) getEntries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *mockRepository) getPrunes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prunes
}

// mockLogger records errors.
type mockLogger struct {
	mu     sync.Mutex
	errors int
	warns  int
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func (l *mockLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func testEvent(char string, v any) accessory.Event {
	return accessory.Event{
		AccessoryID:    "air-purifier",
		Service:        "air_purifier",
		Characteristic: char,
		Value:          v,
		Source:         accessory.SourceSet,
		Timestamp:      time.Now().UTC(),
	}
}

func TestRecorder_WritesEvents(t *testing.T) {
	repo := &mockRepository{}
	rec := NewRecorder(RecorderConfig{Repository: repo})
	rec.Start(context.Background())

	rec.Observe(testEvent("rotation_speed", 40))
	rec.Observe(testEvent("active", 1))
	rec.Stop()

	got := repo.getEntries()
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Characteristic != "rotation_speed" || got[0].Source != "set" || got[0].Service != "air_purifier" {
		t.Errorf("entry = %+v", got[0])
	}

	rec.Observe(testEvent("active", 0))
	if n := len(repo.getEntries()); n != 2 {
		t.Errorf("entries after Stop = %d, want 2", n)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &mockRepository{block: make(chan struct{})}
	logger := &mockLogger{}
	rec := NewRecorder(RecorderConfig{Repository: repo, QueueSize: 1, Logger: logger})
	rec.Start(context.Background())

	// The worker blocks on the first entry; one more fits the queue.
	for i := 0; i < 5; i++ {
		rec.Observe(testEvent("rotation_speed", i*10))
	}
	close(repo.block)
	rec.Stop()

	if rec.Dropped() == 0 {
		t.Error("Dropped() = 0, want events dropped while the writer was blocked")
	}
	if got := uint64(len(repo.getEntries())) + rec.Dropped(); got != 5 {
		t.Errorf("written + dropped = %d, want 5", got)
	}
}

func TestRecorder_LogsWriteFailures(t *testing.T) {
	repo := &mockRepository{recordErr: errors.New("disk full")}
	logger := &mockLogger{}
	rec := NewRecorder(RecorderConfig{Repository: repo, Logger: logger})
	rec.Start(context.Background())

	rec.Observe(testEvent("active", 1))
	rec.Stop()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if logger.errors != 1 {
		t.Errorf("logged errors = %d, want 1", logger.errors)
	}
}

func TestRecorder_Prunes(t *testing.T) {
	repo := &mockRepository{}
	rec := NewRecorder(RecorderConfig{
		Repository:    repo,
		Retention:     time.Hour,
		PruneInterval: 5 * time.Millisecond,
	})
	rec.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for repo.getPrunes() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	rec.Stop()
	rec.Stop()

	if repo.getPrunes() == 0 {
		t.Error("Prune was never called")
	}
}
