package inbox

import (
	"context"
	"sync"
)

// Memory is the in-process inbox used when no database is configured.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) Record(_ context.Context, eventID string, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}
