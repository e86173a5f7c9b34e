package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/alerting"
)

func testAlert(alertType string, active bool) alerting.Alert {
	return alerting.Alert{
		Type:           alertType,
		Severity:       alerting.SeverityWarning,
		Message:        "test",
		ThresholdValue: 16,
		ActualValue:    17.5,
		EventDate:      time.Date(2024, 8, 4, 0, 0, 0, 0, time.UTC),
		Active:         active,
	}
}

type recorder struct {
	mu       sync.Mutex
	payloads []WebhookPayload
	headers  []http.Header
}

func (rec *recorder) server(t *testing.T, status int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p WebhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		rec.mu.Lock()
		rec.payloads = append(rec.payloads, p)
		rec.headers = append(rec.headers, r.Header.Clone())
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifyDeliversMatchingAlerts(t *testing.T) {
	all := &recorder{}
	storms := &recorder{}
	allSrv := all.server(t, http.StatusOK)
	stormSrv := storms.server(t, http.StatusNoContent)

	n := NewWebhookNotifier([]Webhook{
		{URL: allSrv.URL, AuthHeader: "Authorization", AuthValue: "Bearer secret"},
		{URL: stormSrv.URL, AlertTypes: []string{alerting.TypeGeomagneticStorm}, ActiveOnly: true},
	}, nil)

	delivered, err := n.Notify(context.Background(), []alerting.Alert{
		testAlert(alerting.TypeHighTemperatureForecast, true),
		testAlert(alerting.TypeGeomagneticStorm, true),
		testAlert(alerting.TypeGeomagneticStorm, false),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, delivered)

	require.Len(t, all.payloads, 3)
	assert.Equal(t, "Bearer secret", all.headers[0].Get("Authorization"))
	assert.Equal(t, "application/json", all.headers[0].Get("Content-Type"))
	assert.Equal(t, "2024-08-04", all.payloads[0].EventDate)
	assert.Contains(t, all.payloads[0].Message, "HIGH_TEMPERATURE_FORECAST [WARNING]")

	require.Len(t, storms.payloads, 1)
	assert.Equal(t, alerting.TypeGeomagneticStorm, storms.payloads[0].AlertType)
	assert.True(t, storms.payloads[0].Active)
}

func TestNotifyReportsFailures(t *testing.T) {
	failing := &recorder{}
	srv := failing.server(t, http.StatusInternalServerError)

	n := NewWebhookNotifier([]Webhook{{URL: srv.URL}}, nil)
	delivered, err := n.Notify(context.Background(), []alerting.Alert{testAlert(alerting.TypeHighSEPIntensity, true)})
	assert.Zero(t, delivered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Len(t, failing.payloads, 1, "no retry")
}

func TestNotifyDisabled(t *testing.T) {
	var n *WebhookNotifier
	assert.False(t, n.Enabled())

	delivered, err := NewWebhookNotifier(nil, nil).Notify(context.Background(), []alerting.Alert{testAlert("X", true)})
	assert.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestCreatePayload(t *testing.T) {
	p := CreatePayload(testAlert(alerting.TypeHighSEPIntensity, false))
	assert.Equal(t, 16.0, p.ThresholdValue)
	assert.Equal(t, 17.5, p.ActualValue)
	assert.False(t, p.Active)
	assert.InDelta(t, 1.5, p.Metadata["excess"], 1e-12)
	assert.Contains(t, p.Message, "actual 17.50 > threshold 16.00")
}
