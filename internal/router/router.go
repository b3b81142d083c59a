package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sweeney/esl-callbacks/internal/esl"
	"github.com/sweeney/esl-callbacks/internal/logger"
)

// Event types requested from the event socket.
const (
	EventBackgroundJob         = "BACKGROUND_JOB"
	EventChannelProgress       = "CHANNEL_PROGRESS"
	EventChannelProgressMedia  = "CHANNEL_PROGRESS_MEDIA"
	EventChannelHangupComplete = "CHANNEL_HANGUP_COMPLETE"
	EventChannelState          = "CHANNEL_STATE"
	EventSessionHeartbeat      = "SESSION_HEARTBEAT"
	EventCallUpdate            = "CALL_UPDATE"
	EventRecordStop            = "RECORD_STOP"
	EventCustom                = "CUSTOM"

	SubclassConferenceMaintenance = "conference::maintenance"
)

// Subscriptions is the fixed list sent with the subscription request.
var Subscriptions = []string{
	EventBackgroundJob,
	EventChannelProgress,
	EventChannelProgressMedia,
	EventChannelHangupComplete,
	EventChannelState,
	EventSessionHeartbeat,
	EventCallUpdate,
	EventRecordStop,
	EventCustom + " " + SubclassConferenceMaintenance,
}

// Handler processes one event type.
type Handler interface {
	Execute(ctx context.Context, evt esl.Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt esl.Event)

func (f HandlerFunc) Execute(ctx context.Context, evt esl.Event) { f(ctx, evt) }

// Subscriber sends the subscription request on the event socket.
type Subscriber interface {
	Events(ctx context.Context, format string, names ...string) error
}

// Observer is told about every routed or dropped event.
type Observer interface {
	EventDispatched(name string)
	EventDropped(name string)
}

// Router dispatches events to handlers by Event-Name.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
	observer Observer
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. A nil logger keeps the discard default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// New creates a Router with no handlers.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers h for the given Event-Name, replacing any previous handler.
func (r *Router) Handle(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// OnEvent runs the handler registered for the event's name. Events without a
// handler are dropped. Reports whether a handler ran.
func (r *Router) OnEvent(ctx context.Context, evt esl.Event) bool {
	name := evt.Name()

	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		if r.observer != nil {
			r.observer.EventDropped(name)
		}
		return false
	}

	if r.observer != nil {
		r.observer.EventDispatched(name)
	}
	h.Execute(ctx, evt)
	return true
}

// Subscribe declares interest in Subscriptions. Sending it again on the same
// connection has no further effect.
func (r *Router) Subscribe(ctx context.Context, s Subscriber) error {
	r.logger.Debug("subscribing to events", "events", Subscriptions)
	return s.Events(ctx, "json", Subscriptions...)
}
