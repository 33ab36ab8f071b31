package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capture struct {
	mu     sync.Mutex
	bodies []map[string]string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]string
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Errorf("decode webhook payload: %v", err)
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, m)
		c.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func TestDefaultAlertConfig_AutoDetect(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://hooks.slack.com/services/T0/B0/x", "slack"},
		{"https://discord.com/api/webhooks/1/x", "discord"},
		{"https://alerts.example.com/hook", "generic"},
	}
	for _, c := range cases {
		t.Setenv("HDOMANAGER_ALERT_WEBHOOK_URL", c.url)
		t.Setenv("HDOMANAGER_ALERT_WEBHOOK_TYPE", "")
		cfg := DefaultAlertConfig()
		if !cfg.Enabled {
			t.Errorf("%s: expected enabled", c.url)
		}
		if cfg.WebhookType != c.want {
			t.Errorf("%s: detected %q, want %q", c.url, cfg.WebhookType, c.want)
		}
	}
}

func TestDefaultAlertConfig_DisabledWithoutURL(t *testing.T) {
	t.Setenv("HDOMANAGER_ALERT_WEBHOOK_URL", "")
	t.Setenv("HDOMANAGER_ALERT_WEBHOOK_TYPE", "")
	if cfg := DefaultAlertConfig(); cfg.Enabled {
		t.Fatalf("no URL must mean disabled")
	}
}

func TestAlerter_ThresholdAndRecovery(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	a := New(AlertConfig{
		WebhookURL:             srv.URL,
		WebhookType:            "generic",
		Enabled:                true,
		MinFailuresBeforeAlert: 2,
		Timeout:                5 * time.Second,
	})
	ctx := context.Background()
	boom := errors.New("fetch failed")

	a.RefreshFailed(ctx, 145, boom)
	if c.count() != 0 {
		t.Fatalf("first failure must stay below the threshold")
	}

	a.RefreshFailed(ctx, 145, boom)
	if c.count() != 1 {
		t.Fatalf("second failure must alert, got %d sends", c.count())
	}

	a.RefreshSucceeded(ctx, 145)
	if c.count() != 2 {
		t.Fatalf("recovery after an alert must send an all-clear, got %d sends", c.count())
	}

	// Counter reset: a single new failure stays quiet again.
	a.RefreshFailed(ctx, 145, boom)
	if c.count() != 2 {
		t.Fatalf("counter must reset after recovery, got %d sends", c.count())
	}
}

func TestAlerter_SuccessWithoutPriorAlertIsSilent(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	a := New(AlertConfig{
		WebhookURL:             srv.URL,
		WebhookType:            "generic",
		Enabled:                true,
		MinFailuresBeforeAlert: 1,
		Timeout:                5 * time.Second,
	})

	a.RefreshSucceeded(context.Background(), 145)
	if c.count() != 0 {
		t.Fatalf("success without prior failures must not send an all-clear")
	}
}

func TestAlerter_DisabledSendsNothing(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	a := New(AlertConfig{WebhookURL: srv.URL, Enabled: false, MinFailuresBeforeAlert: 1, Timeout: time.Second})
	a.RefreshFailed(context.Background(), 145, errors.New("x"))
	if c.count() != 0 {
		t.Fatalf("disabled alerter must not send")
	}
}

func TestAlerter_PayloadShapes(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	for _, typ := range []string{"slack", "discord", "generic"} {
		a := New(AlertConfig{
			WebhookURL:             srv.URL,
			WebhookType:            typ,
			Enabled:                true,
			MinFailuresBeforeAlert: 1,
			Timeout:                5 * time.Second,
		})
		a.RefreshFailed(context.Background(), 145, errors.New("x"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(c.bodies))
	}
	if _, ok := c.bodies[0]["text"]; !ok {
		t.Errorf("slack payload missing text field: %v", c.bodies[0])
	}
	if _, ok := c.bodies[1]["content"]; !ok {
		t.Errorf("discord payload missing content field: %v", c.bodies[1])
	}
	if c.bodies[2]["source"] != "hdomanager" {
		t.Errorf("generic payload missing source: %v", c.bodies[2])
	}
}
