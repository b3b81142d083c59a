package hangup

import (
	"context"

	"github.com/sweeney/esl-callbacks/internal/calls"
	"github.com/sweeney/esl-callbacks/internal/esl"
)

// Lookup finds the engine records a hangup may belong to.
type Lookup interface {
	CallRequest(uuid string) (*calls.CallRequest, bool)
	Session(uuid string) (*calls.Session, bool)
}

// Handler routes CHANNEL_HANGUP_COMPLETE events into the Resolver.
type Handler struct {
	resolver *Resolver
	lookup   Lookup
	vars     esl.Vars
}

// NewHandler creates a Handler. The resolver's prefix names the request UUID variable.
func NewHandler(resolver *Resolver, lookup Lookup) *Handler {
	return &Handler{resolver: resolver, lookup: lookup, vars: resolver.vars}
}

// Execute resolves the hangup against the tracked call request, then the
// tracked session, then no context.
func (h *Handler) Execute(_ context.Context, evt esl.Event) {
	cause := calls.ParseHangupCause(evt.Get(esl.HeaderHangupCause))
	h.resolver.ResolveAndNotify(evt, cause, "", h.contextFor(evt))
}

func (h *Handler) contextFor(evt esl.Event) CallContext {
	if reqUUID, ok := h.vars.NonEmpty(evt, esl.VarRequestUUID); ok {
		if req, ok := h.lookup.CallRequest(reqUUID); ok {
			return Outbound{Request: req}
		}
	}
	if s, ok := h.lookup.Session(evt.UniqueID()); ok {
		return Inbound{Session: s}
	}
	return NoContext{}
}
