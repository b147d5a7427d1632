package manager

import (
	"context"
	"sync"
)

// InMemory is a reference Manager that keeps progress messages in a
// slice and cancel funcs in a map, guarded by one mutex. The test suite
// uses it in place of a real toxicmaster connection.
type InMemory struct {
	mu    sync.Mutex
	sent  []any
	tasks map[string]context.CancelFunc
}

// NewInMemory returns a ready-to-use InMemory manager.
func NewInMemory() *InMemory {
	return &InMemory{tasks: make(map[string]context.CancelFunc)}
}

func (m *InMemory) SendInfo(ctx context.Context, msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *InMemory) AddBuildTask(buildUUID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[buildUUID] = cancel
}

func (m *InMemory) RmBuildTask(buildUUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, buildUUID)
}

// Cancel looks up buildUUID's cancel func and calls it, reporting
// whether a task was found. This is how a "cancel-build" request
// arriving on another connection reaches a running build.
func (m *InMemory) Cancel(buildUUID string) bool {
	m.mu.Lock()
	cancel, ok := m.tasks[buildUUID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Sent returns the messages recorded so far, for assertions in tests.
func (m *InMemory) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}
