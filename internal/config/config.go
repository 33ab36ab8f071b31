package config

import "os"

type Config struct {
	// Port the HTTP API listens on.
	Port string
	// DBDriver selects the storage backend: memory, sqlite, postgres, postgrespool.
	DBDriver string
	// DBDSN is the backend connection string (file path for sqlite).
	DBDSN string
	// SourceURL overrides the ZSE page URL, mainly for testing.
	SourceURL string
	// RefreshSetting is the worker cadence: a preset name, integer seconds
	// or a cron expression.
	RefreshSetting string
	// RefreshTokenHash is the bcrypt hash guarding the internal refresh
	// endpoint. Empty disables the guard.
	RefreshTokenHash string
	// AutoMigrate runs goose migrations on startup when true.
	AutoMigrate bool
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		Port:             os.Getenv("PORT"),
		DBDriver:         os.Getenv("HDOMANAGER_DB_DRIVER"),
		DBDSN:            os.Getenv("HDOMANAGER_DB_DSN"),
		SourceURL:        os.Getenv("HDOMANAGER_SOURCE_URL"),
		RefreshSetting:   os.Getenv("HDOMANAGER_REFRESH_SETTING"),
		RefreshTokenHash: os.Getenv("HDOMANAGER_REFRESH_TOKEN_HASH"),
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = "hdomanager.db"
	}
	if cfg.RefreshSetting == "" {
		cfg.RefreshSetting = "1week"
	}
	switch os.Getenv("HDOMANAGER_AUTO_MIGRATE") {
	case "1", "true", "yes":
		cfg.AutoMigrate = true
	}
	return cfg
}
