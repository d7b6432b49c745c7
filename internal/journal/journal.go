// Package journal keeps an append-only history of changes made to books and
// loans. Each aggregate (one book, one loan) has its own version sequence.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one recorded change.
type Entry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	AggregateID   int64           `json:"aggregate_id" db:"aggregate_id"`
	EventType     string          `json:"event_type" db:"event_type"`
	EventData     json.RawMessage `json:"event_data" db:"event_data"`
	Version       int             `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Journal records changes and reads them back.
type Journal interface {
	// Record appends one change as the next version of the aggregate.
	Record(ctx context.Context, aggregateType string, aggregateID int64, eventType string, data any) error
	// Load returns the aggregate's entries ordered by version.
	Load(ctx context.Context, aggregateType string, aggregateID int64) ([]Entry, error)
}

// Discard is a Journal that keeps nothing.
type Discard struct{}

func (Discard) Record(context.Context, string, int64, string, any) error { return nil }

func (Discard) Load(context.Context, string, int64) ([]Entry, error) { return []Entry{}, nil }

type aggregateKey struct {
	aggregateType string
	aggregateID   int64
}

// Memory is an in-process Journal used with the memory store and in tests.
type Memory struct {
	mu      sync.Mutex
	entries map[aggregateKey][]Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[aggregateKey][]Entry),
		now:     time.Now,
	}
}

func (m *Memory) Record(_ context.Context, aggregateType string, aggregateID int64, eventType string, data any) error {
	payload, err := codec.Marshal(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := aggregateKey{aggregateType: aggregateType, aggregateID: aggregateID}
	m.entries[key] = append(m.entries[key], Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		EventData:     payload,
		Version:       len(m.entries[key]) + 1,
		CreatedAt:     m.now().UTC(),
	})
	return nil
}

func (m *Memory) Load(_ context.Context, aggregateType string, aggregateID int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.entries[aggregateKey{aggregateType: aggregateType, aggregateID: aggregateID}]
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out, nil
}
