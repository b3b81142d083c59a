package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/sweeney/esl-callbacks/internal/esl"
	"github.com/sweeney/esl-callbacks/internal/logger"
)

// Kind names what produced a callback.
type Kind string

const (
	KindSession    Kind = "session"
	KindConference Kind = "conference"
	KindEvent      Kind = "event"
	KindHangup     Kind = "hangup"
)

// Payloader is implemented by subjects that can describe their current state
// as callback parameters.
type Payloader interface {
	Payload() *Params
}

// Outcome describes a finished delivery attempt.
type Outcome struct {
	ID       string
	Kind     Kind
	Method   string
	URL      string
	Params   *Params
	Err      error
	Duration time.Duration
}

// Observer is notified after every delivery attempt, successful or not.
type Observer interface {
	ObserveDelivery(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

func (f ObserverFunc) ObserveDelivery(o Outcome) { f(o) }

// Delivery is a handle on one in-flight callback.
type Delivery struct {
	ID   string
	done chan struct{}
	err  error
}

// Wait blocks until the delivery is logged and returns the failure that was
// logged, if any. The event path never waits on deliveries.
func (d *Delivery) Wait() error {
	<-d.done
	return d.err
}

// Sender fires HTTP callbacks. Each call makes exactly one attempt in the
// background; outcomes are logged and never returned to the caller.
type Sender struct {
	transport Transport
	extraVars []string
	logger    *slog.Logger
	observers []Observer
	newID     func() string

	wg sync.WaitGroup
}

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the logger. A nil logger keeps the discard default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExtraChannelVars sets the channel variables copied verbatim from events.
func WithExtraChannelVars(vars []string) Option {
	return func(s *Sender) { s.extraVars = append([]string(nil), vars...) }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Sender) { s.observers = append(s.observers, o) }
}

// WithIDGenerator overrides delivery ID generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Sender) { s.newID = f }
}

// NewSender creates a Sender on top of the given transport.
func NewSender(t Transport, opts ...Option) *Sender {
	s := &Sender{
		transport: t,
		logger:    logger.Discard(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CopyExtraVars copies every configured extra channel variable present on evt
// into params under its own name.
func (s *Sender) CopyExtraVars(evt esl.Event, params *Params) {
	for _, name := range s.extraVars {
		if v, ok := evt.Lookup(name); ok {
			params.Set(name, v)
		}
	}
}

// FireSession sends the session payload merged with extra.
func (s *Sender) FireSession(session Payloader, url, method string, extra *Params) *Delivery {
	return s.firePayload(KindSession, session, url, method, extra)
}

// FireConference sends the conference payload merged with extra.
func (s *Sender) FireConference(conf Payloader, url, method string, extra *Params) *Delivery {
	return s.firePayload(KindConference, conf, url, method, extra)
}

func (s *Sender) firePayload(kind Kind, subject Payloader, url, method string, extra *Params) *Delivery {
	params := subject.Payload()
	if params == nil {
		params = &Params{}
	}
	params.Merge(extra)
	return s.Deliver(kind, url, method, params)
}

// FireEvent sends extra plus any configured extra channel variables found on evt.
func (s *Sender) FireEvent(evt esl.Event, url, method string, extra *Params) *Delivery {
	params := extra.Clone()
	s.CopyExtraVars(evt, params)
	return s.Deliver(KindEvent, url, method, params)
}

// Deliver sends params to url in the background and logs the outcome.
// An empty method means POST.
func (s *Sender) Deliver(kind Kind, url, method string, params *Params) *Delivery {
	if method == "" {
		method = http.MethodPost
	}
	if params == nil {
		params = &Params{}
	}

	d := &Delivery{ID: s.newID(), done: make(chan struct{})}
	req := Request{ID: d.ID, Method: method, URL: url, Params: params}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(d.done)

		start := time.Now()
		err := s.transport.Do(context.Background(), req)
		d.err = err

		s.logOutcome(kind, req, err)
		s.notify(Outcome{
			ID:       d.ID,
			Kind:     kind,
			Method:   method,
			URL:      url,
			Params:   params,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	return d
}

// Wait blocks until all in-flight deliveries have been logged.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) logOutcome(kind Kind, req Request, err error) {
	if err == nil {
		s.logger.Info(fmt.Sprintf("Sent to %s %s with %s", req.Method, req.URL, req.Params),
			"delivery_id", req.ID,
		)
		return
	}

	cause := err
	if inner := errors.Unwrap(err); inner != nil {
		cause = inner
	}
	msg := cause.Error()

	label := "Callback failure"
	if kind == KindHangup {
		label = "HangupComplete failure"
	}

	attrs := []any{"delivery_id", req.ID, "method", req.Method, "url", req.URL}
	var gerr *goerrors.Error
	if errors.As(cause, &gerr) {
		if gerr.Source != nil {
			msg = gerr.Source.Error()
		}
		attrs = append(attrs, "category", string(gerr.Category))
		if loc := gerr.Location; loc != nil {
			attrs = append(attrs, "file", filepath.Base(loc.File), "line", loc.Line)
		}
	}
	s.logger.Error(label+": "+msg, attrs...)
}

func (s *Sender) notify(o Outcome) {
	for _, obs := range s.observers {
		obs.ObserveDelivery(o)
	}
}
