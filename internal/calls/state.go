package calls

import (
	"strconv"
	"time"

	"github.com/sweeney/esl-callbacks/internal/callback"
)

// CallStatus is the status reported to webhooks.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusBusy       CallStatus = "busy"
	StatusFailed     CallStatus = "failed"
	StatusTimeout    CallStatus = "timeout"
	StatusNoAnswer   CallStatus = "no-answer"
)

// HangupCause is a call termination reason, echoed verbatim to webhooks.
type HangupCause string

const (
	CauseUnspecified            HangupCause = "UNSPECIFIED"
	CauseNormalClearing         HangupCause = "NORMAL_CLEARING"
	CauseUserBusy               HangupCause = "USER_BUSY"
	CauseNoUserResponse         HangupCause = "NO_USER_RESPONSE"
	CauseNoAnswer               HangupCause = "NO_ANSWER"
	CauseCallRejected           HangupCause = "CALL_REJECTED"
	CauseOriginatorCancel       HangupCause = "ORIGINATOR_CANCEL"
	CauseUnallocatedNumber      HangupCause = "UNALLOCATED_NUMBER"
	CauseNormalTemporaryFailure HangupCause = "NORMAL_TEMPORARY_FAILURE"
	CauseAllottedTimeout        HangupCause = "ALLOTTED_TIMEOUT"
	CauseManagerRequest         HangupCause = "MANAGER_REQUEST"
)

// ParseHangupCause returns the cause carried in an event header value.
// An empty value maps to CauseUnspecified; anything else is kept as is.
func ParseHangupCause(s string) HangupCause {
	if s == "" {
		return CauseUnspecified
	}
	return HangupCause(s)
}

// CallRequest is an outbound call attempt tracked until the call is torn down.
type CallRequest struct {
	UUID       string
	To         string
	From       string
	AccountSID string
	HangupURL  string
	CreatedAt  time.Time
}

// Session is the live state of an inbound call.
type Session struct {
	UUID      string
	From      string
	To        string
	Direction string
	Status    CallStatus
	StartedAt time.Time
}

// Payload returns the session state as callback parameters.
func (s *Session) Payload() *callback.Params {
	return callback.NewParams(
		"CallUUID", s.UUID,
		"From", s.From,
		"To", s.To,
		"Direction", s.Direction,
		"CallStatus", string(s.Status),
	)
}

// Conference is a conference room as reported to webhooks.
type Conference struct {
	UUID    string
	Name    string
	Members int
}

// Payload returns the conference state as callback parameters.
func (c *Conference) Payload() *callback.Params {
	return callback.NewParams(
		"ConferenceUUID", c.UUID,
		"ConferenceName", c.Name,
		"ConferenceSize", strconv.Itoa(c.Members),
	)
}
