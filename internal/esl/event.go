package esl

import "sort"

// Well-known event header names.
const (
	HeaderEventName         = "Event-Name"
	HeaderUniqueID          = "Unique-ID"
	HeaderCallerUniqueID    = "Caller-Unique-ID"
	HeaderCallerIDNumber    = "Caller-Caller-ID-Number"
	HeaderDestinationNumber = "Caller-Destination-Number"
	HeaderCallDirection     = "Call-Direction"
	HeaderChannelState      = "Channel-State"
	HeaderHangupCause       = "Hangup-Cause"
	HeaderContentLength     = "Content-Length"
	HeaderContentType       = "Content-Type"

	// VarDiversion carries the raw SIP Diversion header of the channel.
	VarDiversion = "variable_sip_h_Diversion"
)

// Event is an immutable signaling event: an ordered set of header key/value pairs.
type Event struct {
	headers []header
}

type header struct {
	Key   string
	Value string
}

// NewEvent creates an Event from a flat list of key/value pairs.
func NewEvent(kvs ...string) Event {
	e := Event{}
	for i := 0; i+1 < len(kvs); i += 2 {
		e.headers = append(e.headers, header{Key: kvs[i], Value: kvs[i+1]})
	}
	return e
}

// FromMap builds an Event from a map. Keys are sorted so the result is stable.
func FromMap(m map[string]string) Event {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := Event{headers: make([]header, 0, len(keys))}
	for _, k := range keys {
		e.headers = append(e.headers, header{Key: k, Value: m[k]})
	}
	return e
}

// Each calls fn for every header in wire order.
func (e Event) Each(fn func(key, value string)) {
	for _, h := range e.headers {
		fn(h.Key, h.Value)
	}
}

// Lookup returns the value for key and whether the header is present.
// A present header may carry an empty value.
func (e Event) Lookup(key string) (string, bool) {
	for _, h := range e.headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Get returns the value for the given key, or empty string if not found.
func (e Event) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Has reports whether the header is present, regardless of its value.
func (e Event) Has(key string) bool {
	_, ok := e.Lookup(key)
	return ok
}

// NonEmpty returns the value for key only when it is present and not empty.
func (e Event) NonEmpty(key string) (string, bool) {
	v, ok := e.Lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Name returns the Event-Name header.
func (e Event) Name() string {
	return e.Get(HeaderEventName)
}

// UniqueID returns the channel UUID the event refers to.
func (e Event) UniqueID() string {
	return e.Get(HeaderUniqueID)
}

// Len returns the number of headers.
func (e Event) Len() int {
	return len(e.headers)
}

// Map returns a copy of the headers as a map. Later duplicates win.
func (e Event) Map() map[string]string {
	m := make(map[string]string, len(e.headers))
	for _, h := range e.headers {
		m[h.Key] = h.Value
	}
	return m
}

// Vars resolves application-namespaced channel variables
// (variable_<prefix>_<name>) for one configured prefix.
type Vars struct {
	prefix string
}

// NewVars returns an accessor for variables under the given application prefix.
func NewVars(prefix string) Vars {
	return Vars{prefix: "variable_" + prefix + "_"}
}

// Key returns the full event header name for a namespaced variable.
func (v Vars) Key(name string) string {
	return v.prefix + name
}

// Lookup returns the namespaced variable and whether it is present on the event.
func (v Vars) Lookup(e Event, name string) (string, bool) {
	return e.Lookup(v.Key(name))
}

// NonEmpty returns the namespaced variable only when present and not empty.
func (v Vars) NonEmpty(e Event, name string) (string, bool) {
	return e.NonEmpty(v.Key(name))
}

// Namespaced variable names consumed by the callback layer.
const (
	VarHangupURL         = "hangup_url"
	VarAnswerURL         = "answer_url"
	VarDestinationNumber = "destination_number"
	VarSIPTransferURI    = "sip_transfer_uri"
	VarRequestUUID       = "request_uuid"
	VarSchedHangupID     = "sched_hangup_id"
)
