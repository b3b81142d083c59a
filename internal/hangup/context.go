package hangup

import "github.com/sweeney/esl-callbacks/internal/calls"

// CallContext is the engine state a hangup belongs to: exactly one of
// Outbound, Inbound or NoContext.
type CallContext interface {
	callContext()
}

// Outbound is a hangup of a call originated through a CallRequest.
type Outbound struct {
	Request *calls.CallRequest
}

// Inbound is a hangup of a tracked inbound Session.
type Inbound struct {
	Session *calls.Session
}

// NoContext is a hangup not tied to any tracked request or session.
type NoContext struct{}

func (Outbound) callContext()  {}
func (Inbound) callContext()   {}
func (NoContext) callContext() {}
