package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/esl-callbacks/internal/callback"
)

func TestObserveDeliveryOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveDelivery(callback.Outcome{Kind: callback.KindHangup, Duration: 10 * time.Millisecond})
	c.ObserveDelivery(callback.Outcome{Kind: callback.KindHangup, Err: errors.New("refused")})
	c.ObserveDelivery(callback.Outcome{Kind: callback.KindSession, Err: &callback.ResponseError{StatusCode: 500}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveries.WithLabelValues("hangup", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveries.WithLabelValues("hangup", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveries.WithLabelValues("session", "rejected")))
}

func TestHookCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.DiversionParseFailed()
	c.DiversionParseFailed()
	c.HangupUnresolved("inbound")
	c.HangupUnresolved("")
	c.EventDispatched("CHANNEL_HANGUP_COMPLETE")
	c.EventDropped("HEARTBEAT")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.diversionErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unresolved.WithLabelValues("inbound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unresolved.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("CHANNEL_HANGUP_COMPLETE", "dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("HEARTBEAT", "dropped")))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.DiversionParseFailed()

	srv := httptest.NewServer(NewHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "esl_callbacks_diversion_parse_failures_total 1"))
}
