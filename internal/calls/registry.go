package calls

import (
	"context"
	"time"

	"github.com/sweeney/esl-callbacks/internal/esl"
)

// Clock provides the current time. Defaults to time.Now; override in tests.
type Clock func() time.Time

// Registry owns the call-request and session tables.
type Registry struct {
	requests *Table[*CallRequest]
	sessions *Table[*Session]
	clock    Clock
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		requests: NewTable[*CallRequest](),
		sessions: NewTable[*Session](),
		clock:    time.Now,
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source for the registry.
func WithClock(c Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// NewWithOptions creates a Registry with the given options.
func NewWithOptions(opts ...Option) *Registry {
	r := New()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddCallRequest tracks an outbound call attempt.
func (r *Registry) AddCallRequest(req *CallRequest) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.clock()
	}
	r.requests.Put(req.UUID, req)
}

// CallRequest looks up an outbound call attempt.
func (r *Registry) CallRequest(uuid string) (*CallRequest, bool) {
	return r.requests.Get(uuid)
}

// RemoveCallRequest forgets an outbound call attempt. Absent keys are ignored.
func (r *Registry) RemoveCallRequest(uuid string) {
	r.requests.Remove(uuid)
}

// AddSession tracks an inbound call.
func (r *Registry) AddSession(s *Session) {
	if s.StartedAt.IsZero() {
		s.StartedAt = r.clock()
	}
	r.sessions.Put(s.UUID, s)
}

// Session looks up an inbound call.
func (r *Registry) Session(uuid string) (*Session, bool) {
	return r.sessions.Get(uuid)
}

// RemoveSession forgets an inbound call. Absent keys are ignored.
func (r *Registry) RemoveSession(uuid string) {
	r.sessions.Remove(uuid)
}

// ActiveCallRequests returns the number of tracked call requests.
func (r *Registry) ActiveCallRequests() int {
	return r.requests.Len()
}

// ActiveSessions returns the number of tracked sessions.
func (r *Registry) ActiveSessions() int {
	return r.sessions.Len()
}

// Execute handles CHANNEL_STATE events: an inbound channel reaching CS_EXECUTE
// opens a Session unless one is already tracked.
func (r *Registry) Execute(_ context.Context, evt esl.Event) {
	if evt.Name() != "CHANNEL_STATE" {
		return
	}
	if evt.Get(esl.HeaderChannelState) != "CS_EXECUTE" || evt.Get(esl.HeaderCallDirection) != "inbound" {
		return
	}

	uuid := evt.UniqueID()
	if uuid == "" {
		return
	}

	r.sessions.PutIfAbsent(uuid, &Session{
		UUID:      uuid,
		From:      evt.Get(esl.HeaderCallerIDNumber),
		To:        evt.Get(esl.HeaderDestinationNumber),
		Direction: evt.Get(esl.HeaderCallDirection),
		Status:    StatusInProgress,
		StartedAt: r.clock(),
	})
}
