package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage backs Storage with a pgx connection pool. It also
// exposes PostgreSQL advisory locks so multi-instance workers can elect a
// single runner per job.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/hdomanager?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hdo_codes (
			code INTEGER PRIMARY KEY,
			name TEXT,
			notes TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS schedule_snapshots (
			id SERIAL PRIMARY KEY,
			code INTEGER NOT NULL UNIQUE,
			category TEXT,
			rate_type TEXT,
			payload BYTEA NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ,
			last_duration_ms BIGINT,
			last_success BOOLEAN,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INTEGER,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			to_address TEXT,
			api_key TEXT,
			enabled BOOLEAN,
			updated_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Configured codes

func (s *PostgresPoolStorage) ListCodes(ctx context.Context) ([]HDOCode, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name, notes FROM hdo_codes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HDOCode
	for rows.Next() {
		var c HDOCode
		if err := rows.Scan(&c.Code, &c.Name, &c.Notes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetCode(ctx context.Context, code int) (*HDOCode, error) {
	var c HDOCode
	err := s.pool.QueryRow(ctx,
		`SELECT code, name, notes FROM hdo_codes WHERE code = $1`, code,
	).Scan(&c.Code, &c.Name, &c.Notes)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) UpsertCode(ctx context.Context, c HDOCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hdo_codes (code, name, notes) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, notes = EXCLUDED.notes`,
		c.Code, c.Name, c.Notes)
	return err
}

// Snapshots

func (s *PostgresPoolStorage) GetSnapshot(ctx context.Context, code int) (*ScheduleSnapshot, error) {
	var snap ScheduleSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, category, rate_type, payload, fetched_at
		FROM schedule_snapshots WHERE code = $1`, code,
	).Scan(&snap.ID, &snap.Code, &snap.Category, &snap.RateType, &snap.Payload, &snap.FetchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresPoolStorage) SaveSnapshot(ctx context.Context, snap ScheduleSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schedule_snapshots (code, category, rate_type, payload, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			category = EXCLUDED.category,
			rate_type = EXCLUDED.rate_type,
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at`,
		snap.Code, snap.Category, snap.RateType, snap.Payload, snap.FetchedAt)
	return err
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}

// Email configuration

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var cfg EmailConfig
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address,
		       from_name, to_address, api_key, enabled, updated_at
		FROM email_configs LIMIT 1`,
	).Scan(&cfg.ID, &cfg.Provider, &cfg.Host, &cfg.Port, &cfg.Username, &cfg.Password,
		&cfg.FromAddress, &cfg.FromName, &cfg.ToAddress, &cfg.APIKey, &cfg.Enabled, &cfg.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, cfg EmailConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password,
			from_address, from_name, to_address, api_key, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			from_address = EXCLUDED.from_address,
			from_name = EXCLUDED.from_name,
			to_address = EXCLUDED.to_address,
			api_key = EXCLUDED.api_key,
			enabled = EXCLUDED.enabled,
			updated_at = now()`,
		cfg.ID, cfg.Provider, cfg.Host, cfg.Port, cfg.Username, cfg.Password,
		cfg.FromAddress, cfg.FromName, cfg.ToAddress, cfg.APIKey, cfg.Enabled)
	return err
}

// Scheduled jobs

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, job ScheduledJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_duration_ms = EXCLUDED.last_duration_ms,
			last_success = EXCLUDED.last_success,
			last_error = EXCLUDED.last_error`,
		job.Name, job.LastRunAt, job.LastDurationMs, job.LastSuccess, job.LastError)
	return err
}

// Advisory locks

// AcquireAdvisoryLock attempts a non-blocking session advisory lock.
func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var got bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got)
	return got, err
}

// ReleaseAdvisoryLock releases a previously acquired advisory lock.
func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var released bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&released)
	return released, err
}

// PoolStats exposes pool counters for metrics reporting.
func (s *PostgresPoolStorage) PoolStats() (total, idle, acquired float64, acquires uint64) {
	st := s.pool.Stat()
	return float64(st.TotalConns()), float64(st.IdleConns()), float64(st.AcquiredConns()), uint64(st.AcquireCount())
}
