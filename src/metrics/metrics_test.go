package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	IngestTotal.WithLabelValues("score", "ok").Inc()
	DeliveriesTotal.WithLabelValues(DeliverySent).Inc()
	HubConnections.Set(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `signal_hub_ingest_total{kind="score",result="ok"}`)
	assert.Contains(t, string(body), `signal_hub_deliveries_total{result="sent"}`)
	assert.Contains(t, string(body), "signal_hub_ws_connections 3")
}

func TestCollectorsRegistered(t *testing.T) {
	ControlMessagesTotal.WithLabelValues("ping").Inc()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["signal_hub_control_messages_total"])
	assert.True(t, names["signal_hub_ws_connections"])
}
