package store

import (
	"context"
	"sync"

	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

// MemoryLedger is a concurrency-safe in-memory implementation of earwax.Ledger.
// Rows live only as long as the process.
type MemoryLedger struct {
	mu sync.RWMutex

	rows   []earwax.Observation
	nextID int64
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1}
}

// Insert appends a copy of obs and assigns its ID.
func (m *MemoryLedger) Insert(ctx context.Context, obs *earwax.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	obs.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, *obs)
	return nil
}

// Latest returns the row with the greatest RecordedAt; among equal timestamps
// the one inserted last wins.
func (m *MemoryLedger) Latest(ctx context.Context) (earwax.Observation, error) {
	if err := ctx.Err(); err != nil {
		return earwax.Observation{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.rows) == 0 {
		return earwax.Observation{}, earwax.ErrNoObservations
	}

	latest := m.rows[0]
	for _, row := range m.rows[1:] {
		if !row.RecordedAt.Before(latest.RecordedAt) {
			latest = row
		}
	}
	return latest, nil
}

// All returns every row in insertion order.
func (m *MemoryLedger) All() []earwax.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]earwax.Observation, len(m.rows))
	copy(out, m.rows)
	return out
}
