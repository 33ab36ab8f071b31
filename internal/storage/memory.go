package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	codes    map[int]HDOCode
	snaps    map[int]ScheduleSnapshot
	settings map[string]string
	jobs     map[string]ScheduledJob
	email    *EmailConfig
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		codes:    make(map[int]HDOCode),
		snaps:    make(map[int]ScheduleSnapshot),
		settings: make(map[string]string),
		jobs:     make(map[string]ScheduledJob),
	}
}

// NewMemoryWithCodes seeds the store with configured codes so defaults are
// available without a database.
func NewMemoryWithCodes(codes []HDOCode) *MemoryStorage {
	m := NewMemory()
	for _, c := range codes {
		m.codes[c.Code] = c
	}
	return m
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// ListCodes returns all configured codes.
func (m *MemoryStorage) ListCodes(ctx context.Context) ([]HDOCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HDOCode, 0, len(m.codes))
	for _, c := range m.codes {
		out = append(out, c)
	}
	return out, nil
}

// GetCode looks up one configured code.
func (m *MemoryStorage) GetCode(ctx context.Context, code int) (*HDOCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

// UpsertCode inserts or updates a configured code.
func (m *MemoryStorage) UpsertCode(ctx context.Context, c HDOCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.Code] = c
	return nil
}

// GetSnapshot returns the latest snapshot for a code, if any.
func (m *MemoryStorage) GetSnapshot(ctx context.Context, code int) (*ScheduleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snaps[code]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

// SaveSnapshot stores the snapshot for a code, replacing any prior one.
func (m *MemoryStorage) SaveSnapshot(ctx context.Context, snap ScheduleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	m.snaps[snap.Code] = snap
	return nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.email == nil {
		return nil, nil
	}
	cp := *m.email
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, cfg EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	m.email = &cfg
	return nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, job ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.Name] = job
	return nil
}
