package esl

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Client is an inbound event-socket connection.
type Client struct {
	conn   net.Conn
	parser *Parser

	mu sync.Mutex // serializes command round-trips
}

// Dial connects to addr and authenticates with password.
func Dial(ctx context.Context, addr, password string) (*Client, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial event socket: %w", err)
	}

	c := NewClient(conn)
	if err := c.authenticate(password); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an already established connection. Used directly in tests.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, parser: NewParser(conn)}
}

func (c *Client) authenticate(password string) error {
	frame, err := c.parser.NextFrame()
	if err != nil {
		return fmt.Errorf("reading auth request: %w", err)
	}
	if frame.ContentType() != ContentTypeAuthRequest {
		return fmt.Errorf("expected %s, got %q", ContentTypeAuthRequest, frame.ContentType())
	}

	reply, err := c.roundTrip("auth " + password)
	if err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}
	if !isOK(reply) {
		return fmt.Errorf("authentication rejected: %s", reply.Headers.Get("Reply-Text"))
	}
	return nil
}

// Command sends a single command and waits for its command/reply frame.
func (c *Client) Command(ctx context.Context, cmd string) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	reply, err := c.roundTrip(cmd)
	if err != nil {
		return Frame{}, err
	}
	if !isOK(reply) {
		return reply, fmt.Errorf("command %q failed: %s", firstWord(cmd), reply.Headers.Get("Reply-Text"))
	}
	return reply, nil
}

// Events declares interest in the named event types using the given
// serialization format ("plain" or "json").
func (c *Client) Events(ctx context.Context, format string, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("no event names given")
	}
	_, err := c.Command(ctx, "event "+format+" "+strings.Join(names, " "))
	return err
}

// Next blocks until the next event arrives. Non-event frames are skipped.
// A disconnect notice or closed connection returns io.EOF.
func (c *Client) Next() (Event, error) {
	for {
		frame, err := c.parser.NextFrame()
		if err != nil {
			return Event{}, err
		}
		switch {
		case frame.ContentType() == ContentTypeDisconnect:
			return Event{}, io.EOF
		case frame.IsEvent():
			evt, err := frame.Event()
			if err != nil {
				return Event{}, fmt.Errorf("decoding event: %w", err)
			}
			return evt, nil
		}
	}
}

// NextFrame returns the next raw frame of any content type.
func (c *Client) NextFrame() (Frame, error) {
	return c.parser.NextFrame()
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(cmd string) (Frame, error) {
	if _, err := io.WriteString(c.conn, cmd+"\n\n"); err != nil {
		return Frame{}, err
	}
	for {
		frame, err := c.parser.NextFrame()
		if err != nil {
			return Frame{}, err
		}
		if frame.ContentType() == ContentTypeCommandReply {
			return frame, nil
		}
	}
}

func isOK(f Frame) bool {
	return strings.HasPrefix(f.Headers.Get("Reply-Text"), "+OK")
}

func firstWord(s string) string {
	w, _, _ := strings.Cut(s, " ")
	return w
}
