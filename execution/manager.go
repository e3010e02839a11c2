package execution

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type keyExecution struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes work per key. Work for different keys runs concurrently;
// work for the same key runs one at a time in arrival order of the lock.
type Manager struct {
	keyExecutions map[string]*keyExecution
	mutex         sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		keyExecutions: make(map[string]*keyExecution),
	}
}

// Run executes fn while holding the lock for key.
func (m *Manager) Run(key string, fn func()) {
	execution := m.acquire(key)
	execution.mu.Lock()
	defer func() {
		execution.mu.Unlock()
		m.release(key, execution)
	}()

	fn()
}

func (m *Manager) acquire(key string) *keyExecution {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	execution, exists := m.keyExecutions[key]
	if !exists {
		execution = &keyExecution{}
		m.keyExecutions[key] = execution
	}
	execution.refs++
	if execution.refs > 1 {
		log.Debug().Str("conversation_key", key).Int("waiting", execution.refs-1).Msg("Queued behind running merge")
	}
	return execution
}

func (m *Manager) release(key string, execution *keyExecution) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	execution.refs--
	if execution.refs == 0 && m.keyExecutions[key] == execution {
		delete(m.keyExecutions, key)
	}
}

// Active returns the number of keys with running or queued work.
func (m *Manager) Active() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.keyExecutions)
}
