package publisher

import "context"

// Publisher sends a payload to a topic on a message broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
