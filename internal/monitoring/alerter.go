package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowConfidence   AlertType = "low_plan_confidence"
	AlertFallbackRate    AlertType = "plan_fallback_rate"
	AlertSyncFailureRate AlertType = "sync_failure_rate"
	AlertSyncBacklog     AlertType = "sync_backlog"
)

// minSample is the smallest population a rate alert is raised on.
const minSample = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.LowConfidenceThreshold > 0 && snap.PlansGenerated >= minSample &&
		snap.AvgConfidence < a.cfg.LowConfidenceThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidence,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average plan confidence %.2f is below %.2f (%d plans in last %dh)",
				snap.AvgConfidence, a.cfg.LowConfidenceThreshold, snap.PlansGenerated, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_confidence": snap.AvgConfidence,
				"threshold":      a.cfg.LowConfidenceThreshold,
				"plans":          snap.PlansGenerated,
			},
			Timestamp: now,
		})
	}

	if a.cfg.FallbackRateThreshold > 0 && snap.PlansGenerated >= minSample &&
		snap.FallbackRate > a.cfg.FallbackRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFallbackRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Plan fallback rate %.1f%% exceeds threshold %.1f%% (%d of %d plans in last %dh)",
				snap.FallbackRate*100, a.cfg.FallbackRateThreshold*100,
				snap.PlansFallback, snap.PlansGenerated, snap.LookbackHours,
			),
			Details: map[string]any{
				"fallback_rate": snap.FallbackRate,
				"threshold":     a.cfg.FallbackRateThreshold,
				"fallback":      snap.PlansFallback,
				"plans":         snap.PlansGenerated,
			},
			Timestamp: now,
		})
	}

	finished := snap.SyncCounts["synced"] + snap.SyncFailed
	if a.cfg.SyncFailureRateThreshold > 0 && finished >= minSample &&
		snap.SyncFailureRate > a.cfg.SyncFailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSyncFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Telemetry sync failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				snap.SyncFailureRate*100, a.cfg.SyncFailureRateThreshold*100, snap.SyncFailed, finished,
			),
			Details: map[string]any{
				"failure_rate": snap.SyncFailureRate,
				"threshold":    a.cfg.SyncFailureRateThreshold,
				"failed":       snap.SyncFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.SyncBacklogThreshold > 0 && snap.DueRetries > a.cfg.SyncBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSyncBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d telemetry items are due for retry (threshold %d)",
				snap.DueRetries, a.cfg.SyncBacklogThreshold,
			),
			Details: map[string]any{
				"due_retries": snap.DueRetries,
				"threshold":   a.cfg.SyncBacklogThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
