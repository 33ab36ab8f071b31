package notification

import (
	"context"
	"testing"

	"github.com/hdotools/hdomanager/internal/hdo"
	"github.com/hdotools/hdomanager/internal/storage"
)

func TestSaveConfigAssignsID(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory())

	if err := svc.SaveConfig(ctx, storage.EmailConfig{Provider: "smtp", Host: "mail.example.com"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	cfg, err := svc.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg == nil || cfg.ID == "" {
		t.Fatalf("expected a generated ID, got %+v", cfg)
	}
}

func TestSaveConfigKeepsExistingID(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory())

	if err := svc.SaveConfig(ctx, storage.EmailConfig{ID: "fixed", Provider: "smtp"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	cfg, _ := svc.GetConfig(ctx)
	if cfg.ID != "fixed" {
		t.Fatalf("caller-supplied ID replaced: %q", cfg.ID)
	}
}

func TestScheduleChanged_NoopWithoutConfig(t *testing.T) {
	svc := NewService(storage.NewMemory())

	snap := &hdo.ScheduleSnapshot{HDONumber: 145}
	if err := svc.ScheduleChanged(context.Background(), snap); err != nil {
		t.Fatalf("unconfigured notifier must be a no-op, got %v", err)
	}
}

func TestScheduleChanged_NoopWhenDisabled(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	svc := NewService(st)

	if err := svc.SaveConfig(ctx, storage.EmailConfig{
		Provider:  "smtp",
		Host:      "mail.example.com",
		ToAddress: "ops@example.com",
		Enabled:   false,
	}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	if err := svc.ScheduleChanged(ctx, &hdo.ScheduleSnapshot{HDONumber: 145}); err != nil {
		t.Fatalf("disabled notifier must be a no-op, got %v", err)
	}
}

func TestScheduleChanged_NoopWithoutRecipient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storage.NewMemory())

	if err := svc.SaveConfig(ctx, storage.EmailConfig{
		Provider: "smtp",
		Host:     "mail.example.com",
		Enabled:  true,
	}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	if err := svc.ScheduleChanged(ctx, &hdo.ScheduleSnapshot{HDONumber: 145}); err != nil {
		t.Fatalf("notifier without a recipient must be a no-op, got %v", err)
	}
}

func TestSendEmail_RequiresEnabledConfig(t *testing.T) {
	svc := NewService(storage.NewMemory())
	if err := svc.SendEmail(context.Background(), "ops@example.com", "subj", "body"); err == nil {
		t.Fatalf("expected an error without a stored config")
	}
}

func TestSend_UnknownProvider(t *testing.T) {
	svc := NewService(storage.NewMemory())
	err := svc.TestConfig(context.Background(), storage.EmailConfig{Provider: "pigeon"}, "ops@example.com")
	if err == nil {
		t.Fatalf("expected an error for an unknown provider")
	}
}
