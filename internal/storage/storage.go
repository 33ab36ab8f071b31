package storage

import "context"

// Storage abstracts persistence for configured codes, schedule snapshots
// and service settings. Only the latest snapshot per code is retained.
type Storage interface {
	// Configured HDO codes
	ListCodes(ctx context.Context) ([]HDOCode, error)
	GetCode(ctx context.Context, code int) (*HDOCode, error)
	UpsertCode(ctx context.Context, c HDOCode) error

	// Schedule snapshots (latest only; Save replaces any prior row)
	GetSnapshot(ctx context.Context, code int) (*ScheduleSnapshot, error)
	SaveSnapshot(ctx context.Context, snap ScheduleSnapshot) error

	// Key/value settings (worker cadence override lives here)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Email notification configuration
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg EmailConfig) error

	// Scheduled job bookkeeping
	UpdateScheduledJob(ctx context.Context, job ScheduledJob) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
