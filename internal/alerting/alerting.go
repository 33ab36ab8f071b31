package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// AlertConfig holds alerting configuration for refresh failures.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// MinFailuresBeforeAlert is the consecutive-failure threshold per code
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultAlertConfig returns config from environment variables.
func DefaultAlertConfig() AlertConfig {
	cfg := AlertConfig{
		WebhookURL:             os.Getenv("HDOMANAGER_ALERT_WEBHOOK_URL"),
		WebhookType:            os.Getenv("HDOMANAGER_ALERT_WEBHOOK_TYPE"),
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}

	cfg.Enabled = cfg.WebhookURL != ""

	if cfg.WebhookType == "" {
		// Auto-detect from URL
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}

	return cfg
}

// Alerter tracks consecutive refresh failures per HDO code and fires a
// webhook when the threshold is reached. Recovery resets the counter and
// sends an all-clear.
type Alerter struct {
	cfg AlertConfig

	mu       sync.Mutex
	failures map[int]int
}

func New(cfg AlertConfig) *Alerter {
	return &Alerter{cfg: cfg, failures: make(map[int]int)}
}

// RefreshFailed records a failed refresh for a code.
func (a *Alerter) RefreshFailed(ctx context.Context, code int, err error) {
	if !a.cfg.Enabled {
		return
	}

	a.mu.Lock()
	a.failures[code]++
	n := a.failures[code]
	a.mu.Unlock()

	if n < a.cfg.MinFailuresBeforeAlert {
		return
	}

	msg := fmt.Sprintf("HDO %d refresh failing (%d consecutive failures): %v", code, n, err)
	if err := a.sendWebhook(ctx, msg); err != nil {
		log.Printf("alerting: webhook send failed: %v", err)
	}
}

// RefreshSucceeded clears the failure counter for a code and sends an
// all-clear if it had previously alerted.
func (a *Alerter) RefreshSucceeded(ctx context.Context, code int) {
	if !a.cfg.Enabled {
		return
	}

	a.mu.Lock()
	n := a.failures[code]
	a.failures[code] = 0
	a.mu.Unlock()

	if n < a.cfg.MinFailuresBeforeAlert {
		return
	}

	msg := fmt.Sprintf("HDO %d refresh recovered after %d failures", code, n)
	if err := a.sendWebhook(ctx, msg); err != nil {
		log.Printf("alerting: webhook send failed: %v", err)
	}
}

func (a *Alerter) sendWebhook(ctx context.Context, message string) error {
	var payload any
	switch a.cfg.WebhookType {
	case "slack":
		payload = map[string]string{"text": message}
	case "discord":
		payload = map[string]string{"content": message}
	default:
		payload = map[string]string{"message": message, "source": "hdomanager"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
