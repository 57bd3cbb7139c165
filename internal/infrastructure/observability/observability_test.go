package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("warn", "checkout", &buf)

	logger.Info().Msg("dropped")
	logger.Warn().Str("reference", "ref-1-1").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "checkout", line["service"])
	assert.Equal(t, "ref-1-1", line["reference"])
	assert.Contains(t, line, "caller")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("bogus"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(zerolog.New(&buf), "reconciler")
	logger.Info().Msg("tick")

	assert.Contains(t, buf.String(), `"component":"reconciler"`)
}

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return 0
}

func TestMetrics_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ObserveInitialize("ok")
	m.ObserveSettlement("webhook", "success")
	m.ObserveSettlement("webhook", "success")
	m.ObserveWebhook("charge.success", "processed")
	m.ObserveGatewayRequest("verify", "ok", 120*time.Millisecond)
	m.SetCircuitBreakerState("paystack", 2)
	m.ObserveWorkerTask("reconcile", "success", time.Second)

	assert.Equal(t, 1.0, value(t, m.TransactionsInitialized.WithLabelValues("ok")))
	assert.Equal(t, 2.0, value(t, m.TransactionsSettled.WithLabelValues("webhook", "success")))
	assert.Equal(t, 1.0, value(t, m.WebhookEvents.WithLabelValues("charge.success", "processed")))
	assert.Equal(t, 1.0, value(t, m.GatewayRequests.WithLabelValues("verify", "ok")))
	assert.Equal(t, 2.0, value(t, m.CircuitBreakerState.WithLabelValues("paystack")))
	assert.Equal(t, 1.0, value(t, m.WorkerMessagesProcessed.WithLabelValues("reconcile", "success")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveInitialize("ok")
		m.ObserveSettlement("verify", "failed")
		m.ObserveWebhook("charge.success", "processed")
		m.ObserveGatewayRequest("verify", "ok", time.Millisecond)
		m.SetCircuitBreakerState("paystack", 0)
		m.ObserveWorkerTask("outbox", "success", time.Millisecond)
		m.ObserveHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestShutdownTracer_Nil(t *testing.T) {
	assert.NoError(t, ShutdownTracer(t.Context(), nil))
}
