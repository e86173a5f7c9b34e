// Package notifications delivers alerts to configured webhooks.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"solar-impact-insights/alerting"
	"solar-impact-insights/dataset"
)

// Webhook is one delivery target. An empty AlertTypes list accepts every alert type.
type Webhook struct {
	URL        string
	AlertTypes []string
	AuthHeader string
	AuthValue  string
	ActiveOnly bool
}

// WebhookNotifier posts alerts to webhooks. Delivery is attempted once per webhook.
type WebhookNotifier struct {
	hooks  []Webhook
	client *http.Client
	log    *zap.Logger
}

// WebhookPayload represents the JSON payload sent to webhooks
type WebhookPayload struct {
	AlertType      string                 `json:"AlertType"`
	Severity       string                 `json:"Severity"`
	EventDate      string                 `json:"EventDate"`
	ThresholdValue float64                `json:"ThresholdValue"`
	ActualValue    float64                `json:"ActualValue"`
	Active         bool                   `json:"Active"`
	Message        string                 `json:"Message"`
	SentAt         time.Time              `json:"SentAt"`
	Metadata       map[string]interface{} `json:"Metadata,omitempty"`
}

// NewWebhookNotifier creates a notifier for hooks.
func NewWebhookNotifier(hooks []Webhook, log *zap.Logger) *WebhookNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookNotifier{
		hooks: hooks,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Enabled reports whether any webhook is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n != nil && len(n.hooks) > 0
}

// Notify delivers every alert to every matching webhook and returns the number of
// successful deliveries. Failures are joined into the returned error.
func (n *WebhookNotifier) Notify(ctx context.Context, alerts []alerting.Alert) (int, error) {
	if !n.Enabled() || len(alerts) == 0 {
		return 0, nil
	}

	var errs []error
	delivered := 0
	for _, alert := range alerts {
		payload, err := json.Marshal(CreatePayload(alert))
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal webhook payload: %w", err))
			continue
		}
		for _, hook := range n.hooks {
			if !shouldSend(hook, alert) {
				continue
			}
			if err := n.deliver(ctx, hook, payload); err != nil {
				n.log.Warn("⚠️  Webhook delivery failed",
					zap.String("url", hook.URL),
					zap.String("alert_type", alert.Type),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}
			delivered++
		}
	}
	return delivered, errors.Join(errs...)
}

// CreatePayload generates the webhook payload from an alert
func CreatePayload(alert alerting.Alert) WebhookPayload {
	// Example: "🌞 HIGH_TEMPERATURE_FORECAST [WARNING] 2024-08-04 | actual 17.20 > threshold 16.00 | High temperature forecast: ..."
	message := fmt.Sprintf("%s %s [%s] %s | actual %.2f > threshold %.2f | %s",
		alertEmoji(alert.Type),
		alert.Type,
		alert.Severity,
		alert.EventDate.Format(dataset.DateLayout),
		alert.ActualValue,
		alert.ThresholdValue,
		alert.Message,
	)

	return WebhookPayload{
		AlertType:      alert.Type,
		Severity:       alert.Severity,
		EventDate:      alert.EventDate.Format(dataset.DateLayout),
		ThresholdValue: alert.ThresholdValue,
		ActualValue:    alert.ActualValue,
		Active:         alert.Active,
		Message:        message,
		SentAt:         time.Now().UTC(),
		Metadata: map[string]interface{}{
			"excess": alert.ActualValue - alert.ThresholdValue,
		},
	}
}

func alertEmoji(alertType string) string {
	switch alertType {
	case alerting.TypeHighTemperatureForecast:
		return "🌡️"
	case alerting.TypeHighSEPIntensity:
		return "☀️"
	case alerting.TypeGeomagneticStorm:
		return "🧲"
	default:
		return "🔔"
	}
}

func shouldSend(hook Webhook, alert alerting.Alert) bool {
	if len(hook.AlertTypes) > 0 && !slices.Contains(hook.AlertTypes, alert.Type) {
		return false
	}
	if hook.ActiveOnly && !alert.Active {
		return false
	}
	return true
}

func (n *WebhookNotifier) deliver(ctx context.Context, hook Webhook, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Solar-Impact-Alert/1.0")
	if hook.AuthHeader != "" {
		req.Header.Set(hook.AuthHeader, hook.AuthValue)
	}

	n.log.Debug("🔹 Sending webhook", zap.String("url", hook.URL))
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", hook.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: HTTP %d", hook.URL, resp.StatusCode)
	}
	return nil
}
