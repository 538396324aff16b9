package incremental

import (
	"context"
	"sync"
)

// WatermarkManager persists the last-seen cursor value per table/column
// pair, used to bound incremental reads.
type WatermarkManager interface {
	// GetWatermark returns the stored cursor value, with ok=false when
	// no watermark exists yet.
	GetWatermark(ctx context.Context, table, column string) (value string, ok bool, err error)

	// SetWatermark stores a new cursor value, replacing any prior one.
	SetWatermark(ctx context.Context, table, column, value string) error
}

// MemoryWatermarkManager keeps watermarks in process memory. Used by
// tests and by runs that opt out of persistent state.
type MemoryWatermarkManager struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryWatermarkManager creates an empty in-memory manager.
func NewMemoryWatermarkManager() *MemoryWatermarkManager {
	return &MemoryWatermarkManager{values: make(map[string]string)}
}

func watermarkKey(table, column string) string {
	return table + "\x00" + column
}

// GetWatermark implements WatermarkManager.
func (m *MemoryWatermarkManager) GetWatermark(_ context.Context, table, column string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[watermarkKey(table, column)]
	return value, ok, nil
}

// SetWatermark implements WatermarkManager.
func (m *MemoryWatermarkManager) SetWatermark(_ context.Context, table, column, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[watermarkKey(table, column)] = value
	return nil
}
