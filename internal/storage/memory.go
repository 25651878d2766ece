package storage

import "sync"

// Memory is a Backend that keeps blobs in process memory. Nothing survives a
// restart; it is meant for tests and for running without persistence.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte{}, data...)
	return nil
}

func (m *Memory) Get(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[name]
	if !ok {
		return nil, notFound(name)
	}
	return append([]byte{}, v...), nil
}

func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return notFound(name)
	}
	delete(m.blobs, name)
	return nil
}

// Names returns the names currently stored, in no particular order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	return out
}
