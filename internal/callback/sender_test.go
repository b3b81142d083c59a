package callback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/esl-callbacks/internal/esl"
)

// recordingTransport captures requests and fails with err when set.
type recordingTransport struct {
	mu       sync.Mutex
	requests []Request
	err      error
}

func (r *recordingTransport) Do(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.err
}

func (r *recordingTransport) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubSubject struct{ params *Params }

func (s stubSubject) Payload() *Params { return s.params.Clone() }

func newTestSender(t *testing.T, tr Transport, opts ...Option) (*Sender, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	n := 0
	opts = append([]Option{
		WithLogger(logger),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("d-%d", n) }),
	}, opts...)
	return NewSender(tr, opts...), logs
}

func TestFireSessionMergesExtraOnTop(t *testing.T) {
	tr := &recordingTransport{}
	s, logs := newTestSender(t, tr)

	subject := stubSubject{params: NewParams("CallUUID", "u1", "CallStatus", "in-progress")}
	d := s.FireSession(subject, "http://hooks/a", "", NewParams("CallStatus", "ringing", "Extra", "1"))
	require.NoError(t, d.Wait())

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "POST", reqs[0].Method)
	assert.Equal(t, "http://hooks/a", reqs[0].URL)
	assert.Equal(t, "d-1", reqs[0].ID)
	assert.Equal(t, map[string]string{"CallUUID": "u1", "CallStatus": "ringing", "Extra": "1"}, reqs[0].Params.Map())

	assert.Contains(t, logs.String(), "level=INFO")
	assert.Contains(t, logs.String(), `Sent to POST http://hooks/a with {\"CallUUID\":\"u1\",\"CallStatus\":\"ringing\",\"Extra\":\"1\"}`)
}

func TestFireConferenceUsesPayload(t *testing.T) {
	tr := &recordingTransport{}
	s, _ := newTestSender(t, tr)

	d := s.FireConference(stubSubject{params: NewParams("ConferenceName", "room")}, "http://hooks/c", "GET", nil)
	require.NoError(t, d.Wait())

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, map[string]string{"ConferenceName": "room"}, reqs[0].Params.Map())
}

func TestFireEventCopiesConfiguredVars(t *testing.T) {
	tr := &recordingTransport{}
	s, _ := newTestSender(t, tr, WithExtraChannelVars([]string{"variable_tenant", "variable_missing", "variable_empty"}))

	evt := esl.NewEvent("variable_tenant", "acme", "variable_empty", "", "variable_other", "x")
	d := s.FireEvent(evt, "http://hooks/e", "POST", NewParams("Digits", "42"))
	require.NoError(t, d.Wait())

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]string{
		"Digits":          "42",
		"variable_tenant": "acme",
		"variable_empty":  "",
	}, reqs[0].Params.Map())
}

func TestDeliveryFailureIsLoggedAndSwallowed(t *testing.T) {
	inner := goerrors.Wrap(errors.New("connection refused"), goerrors.CategoryExternal, "sending callback")
	tr := &recordingTransport{err: fmt.Errorf("POST http://hooks/x: %w", inner)}

	var outcomes []Outcome
	var mu sync.Mutex
	s, logs := newTestSender(t, tr, WithObserver(ObserverFunc(func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
	})))

	d := s.Deliver(KindHangup, "http://hooks/x", "POST", NewParams("CallUUID", "u1"))
	err := d.Wait()
	require.Error(t, err)

	out := logs.String()
	assert.Contains(t, out, "level=ERROR")
	// One level of wrapping is removed before logging
	assert.Contains(t, out, `msg="HangupComplete failure: connection refused"`)
	assert.Contains(t, out, "category=external")
	assert.Contains(t, out, "file=sender_test.go")
	assert.Contains(t, out, "line=")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.Equal(t, KindHangup, outcomes[0].Kind)
	assert.Error(t, outcomes[0].Err)
}

func TestCallbackFailureLabel(t *testing.T) {
	tr := &recordingTransport{err: errors.New("boom")}
	s, logs := newTestSender(t, tr)

	_ = s.Deliver(KindEvent, "http://hooks/x", "", nil).Wait()
	assert.Contains(t, logs.String(), `msg="Callback failure: boom"`)
	assert.NotContains(t, logs.String(), "file=")
}

func TestSenderWaitDrainsInFlight(t *testing.T) {
	tr := &recordingTransport{}
	s, _ := newTestSender(t, tr)

	for i := 0; i < 20; i++ {
		s.Deliver(KindEvent, fmt.Sprintf("http://hooks/%d", i), "POST", nil)
	}
	s.Wait()

	assert.Len(t, tr.Requests(), 20)
}

func TestDeliveryIDsAreUUIDsByDefault(t *testing.T) {
	tr := &recordingTransport{}
	s := NewSender(tr)

	d := s.Deliver(KindEvent, "http://hooks/x", "POST", nil)
	require.NoError(t, d.Wait())
	assert.Len(t, d.ID, 36)
	assert.Equal(t, 4, strings.Count(d.ID, "-"))
}

func TestNilLoggerFallsBackToDiscard(t *testing.T) {
	tr := &recordingTransport{err: errors.New("connection refused")}
	s := NewSender(tr, WithLogger(nil))

	var err error
	require.NotPanics(t, func() {
		err = s.Deliver(KindHangup, "http://hooks/x", "POST", nil).Wait()
	})
	assert.Error(t, err)
}
