package hangup

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sweeney/esl-callbacks/internal/callback"
	"github.com/sweeney/esl-callbacks/internal/calls"
	"github.com/sweeney/esl-callbacks/internal/esl"
	"github.com/sweeney/esl-callbacks/internal/logger"
)

// undefinedNumber marks a destination number variable that was never set.
const undefinedNumber = "_undef_"

// Config holds the resolver settings.
type Config struct {
	AppPrefix        string
	DefaultHangupURL string
	DefaultAnswerURL string
}

// Tables is the slice of the engine's lookup tables the resolver mutates.
type Tables interface {
	RemoveCallRequest(uuid string)
	RemoveSession(uuid string)
}

// Notifier delivers resolved callbacks.
type Notifier interface {
	CopyExtraVars(evt esl.Event, params *callback.Params)
	Deliver(kind callback.Kind, url, method string, params *callback.Params) *callback.Delivery
}

// Observer receives the failures and skips the resolver otherwise only logs.
type Observer interface {
	DiversionParseFailed()
	HangupUnresolved(direction string)
}

// Resolver decides where a hangup-completion callback goes and what it carries.
type Resolver struct {
	cfg      Config
	vars     esl.Vars
	tables   Tables
	notifier Notifier
	observer Observer
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger. A nil logger keeps the discard default.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers the observability hook.
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config, tables Tables, notifier Notifier, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		vars:     esl.NewVars(cfg.AppPrefix),
		tables:   tables,
		notifier: notifier,
		observer: nopObserver{},
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// call collects what the branches resolve before the common tail.
type call struct {
	url       string
	resolved  bool
	calledNum string
	callerNum string
	direction string
}

// ResolveAndNotify handles one hangup completion. urlOverride is used when
// non-empty unless the context supplies a better URL. It returns the started
// delivery, or nil when no callback is due.
func (r *Resolver) ResolveAndNotify(evt esl.Event, cause calls.HangupCause, urlOverride string, cc CallContext) *callback.Delivery {
	params := &callback.Params{}

	var c call
	if urlOverride != "" {
		c.url, c.resolved = urlOverride, true
	}

	switch ctx := cc.(type) {
	case Outbound:
		params.Set("CallUUID", evt.UniqueID())
		if !r.outbound(evt, cause, ctx.Request, params, &c) {
			return nil
		}
	case Inbound:
		params.Set("CallUUID", ctx.Session.UUID)
		if !r.inbound(evt, cause, ctx.Session, &c) {
			return nil
		}
	case NoContext, nil:
		params.Set("CallUUID", evt.UniqueID())
		if !c.resolved {
			r.logger.Debug(fmt.Sprintf("No HangupUrl for CallUUID %s", evt.UniqueID()))
			r.observer.HangupUnresolved("")
			return nil
		}
	default:
		panic(fmt.Sprintf("hangup: unknown call context %T", cc))
	}

	if v, ok := r.vars.Lookup(evt, esl.VarSIPTransferURI); ok {
		params.Set("SIPTransfer", "true")
		params.Set("SIPTransferURI", v)
	}

	params.Set("HangupCause", string(cause))
	params.Set("To", c.calledNum)
	params.Set("From", c.callerNum)
	params.Set("Direction", c.direction)
	params.Set("CallStatus", string(calls.StatusCompleted))

	r.notifier.CopyExtraVars(evt, params)

	return r.notifier.Deliver(callback.KindHangup, c.url, http.MethodPost, params)
}

func (r *Resolver) outbound(evt esl.Event, cause calls.HangupCause, req *calls.CallRequest, params *callback.Params, c *call) bool {
	r.tables.RemoveCallRequest(req.UUID)

	callUUID, _ := params.Get("CallUUID")
	r.logger.Info(fmt.Sprintf("Hangup for Outgoing CallUUID %s Completed, HangupCause %s, RequestUUID %s", callUUID, cause, req.UUID))

	c.calledNum = strings.TrimLeft(req.To, "+")
	c.callerNum = strings.TrimLeft(req.From, "+")
	c.direction = "outbound"

	r.logger.Debug(fmt.Sprintf("Call Cleaned up for RequestUUID %s", req.UUID))

	if req.HangupURL != "" {
		c.url, c.resolved = req.HangupURL, true
	}
	if !c.resolved {
		r.logger.Debug(fmt.Sprintf("No HangupUrl for Outgoing Call %s, RequestUUID %s", callUUID, req.UUID))
		r.observer.HangupUnresolved(c.direction)
		return false
	}

	params.Set("RequestUUID", req.UUID)

	if raw, ok := evt.Lookup(esl.VarDiversion); ok {
		user, err := ParseDiversion(raw)
		switch {
		case err != nil:
			r.logger.Error(fmt.Sprintf("Cannot parse Diversion SIP header '%s'", raw), "error", err)
			r.observer.DiversionParseFailed()
		case user != "":
			params.Set("ForwardedFrom", strings.TrimLeft(user, "+"))
		}
	}

	if v, ok := evt.NonEmpty(esl.HeaderCallerUniqueID); ok {
		params.Set("ALegUUID", v)
	}
	if v, ok := r.vars.NonEmpty(evt, esl.VarRequestUUID); ok {
		params.Set("ALegRequestUUID", v)
	}
	if v, ok := r.vars.NonEmpty(evt, esl.VarSchedHangupID); ok {
		params.Set("ScheduledHangupId", v)
	}
	return true
}

func (r *Resolver) inbound(evt esl.Event, cause calls.HangupCause, s *calls.Session, c *call) bool {
	r.tables.RemoveSession(s.UUID)

	r.logger.Info(fmt.Sprintf("Hangup for Incoming CallUUID %s Completed, HangupCause %s", s.UUID, cause))

	if v, ok := r.vars.Lookup(evt, esl.VarHangupURL); ok {
		c.url, c.resolved = v, true
		r.logger.Debug(fmt.Sprintf("Using HangupUrl for CallUUID %s", s.UUID))
	} else if r.cfg.DefaultHangupURL != "" {
		c.url, c.resolved = r.cfg.DefaultHangupURL, true
		r.logger.Debug(fmt.Sprintf("Using HangupUrl from DefaultHangupUrl for CallUUID %s", s.UUID))
	} else if v, ok := r.vars.Lookup(evt, esl.VarAnswerURL); ok {
		c.url, c.resolved = v, true
		r.logger.Debug(fmt.Sprintf("Using HangupUrl from AnswerUrl for CallUUID %s", s.UUID))
	} else if r.cfg.DefaultAnswerURL != "" {
		c.url, c.resolved = r.cfg.DefaultAnswerURL, true
		r.logger.Debug(fmt.Sprintf("Using HangupUrl from DefaultAnswerUrl for CallUUID %s", s.UUID))
	}

	if !c.resolved {
		r.logger.Debug(fmt.Sprintf("No HangupUrl for Incoming CallUUID %s", s.UUID))
		r.observer.HangupUnresolved("inbound")
		return false
	}

	called, ok := r.vars.Lookup(evt, esl.VarDestinationNumber)
	if !ok || called == undefinedNumber {
		called = evt.Get(esl.HeaderDestinationNumber)
	}
	c.calledNum = strings.TrimLeft(called, "+")
	c.callerNum = evt.Get(esl.HeaderCallerIDNumber)
	c.direction = evt.Get(esl.HeaderCallDirection)
	return true
}

type nopObserver struct{}

func (nopObserver) DiversionParseFailed()   {}
func (nopObserver) HangupUnresolved(string) {}
