package publisher

import (
	"context"
	"strings"
	"sync"
)

// Message records a single published message.
type Message struct {
	Topic   string
	Payload []byte
}

// MockPublisher records publishes in memory for test assertions.
type MockPublisher struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	err      error
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns a copy of all published messages.
func (m *MockPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Under returns the messages whose topic starts with prefix.
func (m *MockPublisher) Under(prefix string) []Message {
	var out []Message
	for _, msg := range m.Messages() {
		if strings.HasPrefix(msg.Topic, prefix) {
			out = append(out, msg)
		}
	}
	return out
}

// Closed returns whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetError makes subsequent publishes fail with err. Pass nil to clear.
func (m *MockPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
