package esl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Content types seen on the event socket.
const (
	ContentTypeAuthRequest  = "auth/request"
	ContentTypeCommandReply = "command/reply"
	ContentTypeAPIResponse  = "api/response"
	ContentTypeEventPlain   = "text/event-plain"
	ContentTypeEventJSON    = "text/event-json"
	ContentTypeDisconnect   = "text/disconnect-notice"
)

// bodyKey is the header name given to an event's trailing body.
const bodyKey = "_body"

// Frame is one message read off the event socket: envelope headers plus an
// optional Content-Length delimited body.
type Frame struct {
	Headers Event
	Body    []byte
}

// ContentType returns the envelope Content-Type.
func (f Frame) ContentType() string {
	return f.Headers.Get(HeaderContentType)
}

// IsEvent reports whether the frame carries a signaling event.
func (f Frame) IsEvent() bool {
	ct := f.ContentType()
	return ct == ContentTypeEventPlain || ct == ContentTypeEventJSON
}

// Event decodes the body of an event frame.
func (f Frame) Event() (Event, error) {
	switch f.ContentType() {
	case ContentTypeEventPlain:
		return decodePlain(f.Body)
	case ContentTypeEventJSON:
		return decodeJSON(f.Body)
	default:
		return Event{}, fmt.Errorf("frame %q is not an event", f.ContentType())
	}
}

// WriteTo writes the frame back in wire format: envelope headers, a blank
// line, then the body.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, h := range f.Headers.headers {
		buf.WriteString(h.Key)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	return buf.WriteTo(w)
}

// Parser reads an event-socket byte stream and emits Frames and Events.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a Parser that reads from the given reader.
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// NextFrame reads the next frame. It returns io.EOF once the stream is exhausted
// between frames.
func (p *Parser) NextFrame() (Frame, error) {
	var headers []header

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && len(headers) == 0 && strings.TrimSpace(line) == "" {
				return Frame{}, io.EOF
			}
			if errors.Is(err, io.EOF) {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the envelope
		if line == "" {
			if len(headers) == 0 {
				continue
			}
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers = append(headers, header{Key: key, Value: strings.TrimPrefix(value, " ")})
	}

	frame := Frame{Headers: Event{headers: headers}}

	if cl, ok := frame.Headers.Lookup(HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return Frame{}, fmt.Errorf("invalid Content-Length %q", cl)
		}
		frame.Body = make([]byte, n)
		if _, err := io.ReadFull(p.reader, frame.Body); err != nil {
			return Frame{}, fmt.Errorf("reading %d byte body: %w", n, err)
		}
	}

	return frame, nil
}

// Next reads frames until it finds an event, skipping replies and notices.
// Returns the event and true, or a zero Event and false at EOF or on a read error.
func (p *Parser) Next() (Event, bool) {
	for {
		frame, err := p.NextFrame()
		if err != nil {
			return Event{}, false
		}
		if !frame.IsEvent() {
			continue
		}
		evt, err := frame.Event()
		if err != nil {
			continue
		}
		return evt, true
	}
}

// ParseAll reads all events from the stream and returns them.
func (p *Parser) ParseAll() []Event {
	var events []Event
	for {
		evt, ok := p.Next()
		if !ok {
			break
		}
		events = append(events, evt)
	}
	return events
}

// ParseBytes is a convenience function that parses all events from a byte slice.
func ParseBytes(data []byte) []Event {
	return NewParser(bytes.NewReader(data)).ParseAll()
}

// decodePlain parses a text/event-plain body: percent-encoded "Key: Value"
// lines, a blank line, and an optional Content-Length delimited body.
func decodePlain(body []byte) (Event, error) {
	var headers []header

	rest := string(body)
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")
		// PathUnescape keeps a literal '+' (E.164 numbers) intact
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		headers = append(headers, header{Key: key, Value: value})
	}

	evt := Event{headers: headers}
	if cl, ok := evt.Lookup(HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 || n > len(rest) {
			return Event{}, fmt.Errorf("invalid event Content-Length %q", cl)
		}
		evt.headers = append(evt.headers, header{Key: bodyKey, Value: rest[:n]})
	}

	if len(evt.headers) == 0 {
		return Event{}, errors.New("empty event")
	}
	return evt, nil
}

func decodeJSON(body []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, fmt.Errorf("decoding json event: %w", err)
	}

	m := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			m[k] = t
		case nil:
			m[k] = ""
		default:
			m[k] = fmt.Sprint(t)
		}
	}
	return FromMap(m), nil
}
