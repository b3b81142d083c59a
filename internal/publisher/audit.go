package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/esl-callbacks/internal/callback"
	"github.com/sweeney/esl-callbacks/internal/logger"
)

// auditPayload is the JSON document mirrored for every callback delivery.
type auditPayload struct {
	DeliveryID string           `json:"delivery_id"`
	Kind       string           `json:"kind"`
	Method     string           `json:"method"`
	URL        string           `json:"url"`
	Outcome    string           `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	Params     *callback.Params `json:"params"`
	Timestamp  string           `json:"timestamp"`
}

// Auditor mirrors callback delivery outcomes to a Publisher under
// <prefix>/callback/<CallUUID>/<outcome>.
type Auditor struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditor creates an Auditor publishing under prefix. A nil logger discards.
func NewAuditor(pub Publisher, prefix string, l *slog.Logger) *Auditor {
	if l == nil {
		l = logger.Discard()
	}
	return &Auditor{pub: pub, prefix: prefix, logger: l, now: time.Now}
}

// ObserveDelivery implements callback.Observer. Publish errors are logged only.
func (a *Auditor) ObserveDelivery(o callback.Outcome) {
	outcome := "delivered"
	payload := auditPayload{
		DeliveryID: o.ID,
		Kind:       string(o.Kind),
		Method:     o.Method,
		URL:        o.URL,
		DurationMS: o.Duration.Milliseconds(),
		Params:     o.Params,
		Timestamp:  a.now().UTC().Format(time.RFC3339),
	}
	if o.Err != nil {
		outcome = "failed"
		payload.Error = o.Err.Error()
	}
	payload.Outcome = outcome

	callUUID, _ := o.Params.Get("CallUUID")
	if callUUID == "" {
		callUUID = "none"
	}
	topic := fmt.Sprintf("%s/callback/%s/%s", a.prefix, callUUID, outcome)

	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling audit payload", "error", err)
		return
	}

	if err := a.pub.Publish(context.Background(), topic, data); err != nil {
		a.logger.Error("publish error", "topic", topic, "error", err)
	}
}
