package circuitbreaker

import (
	"sort"
	"sync"

	"canvas-gateway/internal/common/logging"
)

// Manager holds the breakers of every event forwarder so /health can report
// them together.
type Manager struct {
	mu     sync.Mutex
	byName map[string]*Breaker
	logger logging.Logger
}

func NewManager(logger logging.Logger) *Manager {
	return &Manager{
		byName: make(map[string]*Breaker),
		logger: logging.OrGlobal(logger),
	}
}

// Breaker returns the breaker registered under name, creating it from settings
// on first use. Later calls ignore settings.
func (m *Manager) Breaker(name string, settings Settings) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.byName[name]
	if !ok {
		b = New(name, settings, m.logger)
		m.byName[name] = b
	}
	return b
}

// Lookup returns an existing breaker.
func (m *Manager) Lookup(name string) (*Breaker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byName[name]
	return b, ok
}

// Open names the breakers currently rejecting calls.
func (m *Manager) Open() []string {
	var open []string
	for _, b := range m.sorted() {
		if b.IsOpen() {
			open = append(open, b.Name())
		}
	}
	return open
}

// Stats reports every breaker, ordered by name.
func (m *Manager) Stats() []Stats {
	breakers := m.sorted()
	stats := make([]Stats, len(breakers))
	for i, b := range breakers {
		stats[i] = b.Stats()
	}
	return stats
}

func (m *Manager) sorted() []*Breaker {
	m.mu.Lock()
	list := make([]*Breaker, 0, len(m.byName))
	for _, b := range m.byName {
		list = append(list, b)
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}
