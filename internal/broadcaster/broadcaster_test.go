package broadcaster

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
)

var errConnClosed = errors.New("connection closed")

// mockMember records frames and, like a session, leaves its room once when closed.
type mockMember struct {
	id      string
	sendErr error
	onClose func(m *mockMember)

	mu       sync.Mutex
	received [][]byte
	closes   int
}

func (m *mockMember) ID() string { return m.id }

func (m *mockMember) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, frame)
	return nil
}

func (m *mockMember) Close() {
	m.mu.Lock()
	m.closes++
	first := m.closes == 1
	m.mu.Unlock()

	if first && m.onClose != nil {
		m.onClose(m)
	}
}

func (m *mockMember) getReceived() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, 0, len(m.received))
	for _, frame := range m.received {
		result = append(result, string(frame))
	}
	return result
}

func (m *mockMember) getCloses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry() *registry.Registry {
	return registry.New(discardLogger())
}
