package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/esl-callbacks/internal/callback"
	"github.com/sweeney/esl-callbacks/internal/logger"
)

func decodeAudit(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return m
}

func TestAuditorPublishesOutcome(t *testing.T) {
	mock := NewMockPublisher()
	a := NewAuditor(mock, "esl", logger.Discard())
	a.now = func() time.Time { return time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC) }

	a.ObserveDelivery(callback.Outcome{
		ID:       "d-1",
		Kind:     callback.KindHangup,
		Method:   "POST",
		URL:      "http://a/h",
		Params:   callback.NewParams("CallUUID", "u1", "CallStatus", "completed"),
		Duration: 1500 * time.Millisecond,
	})

	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Topic != "esl/callback/u1/delivered" {
		t.Errorf("unexpected topic %s", msgs[0].Topic)
	}

	got := decodeAudit(t, msgs[0].Payload)
	for key, want := range map[string]any{
		"delivery_id": "d-1",
		"kind":        "hangup",
		"outcome":     "delivered",
		"duration_ms": float64(1500),
		"timestamp":   "2026-02-12T10:00:00Z",
	} {
		if got[key] != want {
			t.Errorf("expected %s=%v, got %v", key, want, got[key])
		}
	}
	if _, ok := got["error"]; ok {
		t.Errorf("expected no error field, got %v", got["error"])
	}
	params, _ := got["params"].(map[string]any)
	if params["CallStatus"] != "completed" {
		t.Errorf("expected params.CallStatus=completed, got %v", params)
	}
}

func TestAuditorFailureTopic(t *testing.T) {
	mock := NewMockPublisher()
	a := NewAuditor(mock, "pbx", logger.Discard())

	a.ObserveDelivery(callback.Outcome{Kind: callback.KindEvent, Err: errors.New("refused")})

	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Topic != "pbx/callback/none/failed" {
		t.Errorf("unexpected topic %s", msgs[0].Topic)
	}
	if got := decodeAudit(t, msgs[0].Payload); got["error"] != "refused" {
		t.Errorf("expected error=refused, got %v", got["error"])
	}
}

func TestAuditorSwallowsPublishErrors(t *testing.T) {
	mock := NewMockPublisher()
	mock.SetError(errors.New("broker down"))
	a := NewAuditor(mock, "esl", logger.Discard())

	a.ObserveDelivery(callback.Outcome{Params: callback.NewParams("CallUUID", "u1")})
	if n := len(mock.Messages()); n != 0 {
		t.Errorf("expected nothing recorded, got %d", n)
	}
}

func TestAuditorNilLogger(t *testing.T) {
	mock := NewMockPublisher()
	mock.SetError(errors.New("broker down"))
	a := NewAuditor(mock, "esl", nil)

	// Logging the publish failure must not dereference a nil logger.
	a.ObserveDelivery(callback.Outcome{Params: callback.NewParams("CallUUID", "u1")})
	if a.logger == nil {
		t.Error("expected discard logger in place of nil")
	}
}
