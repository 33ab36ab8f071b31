package storage

import "time"

// HDOCode holds metadata about a configured HDO number.
type HDOCode struct {
	Code  int    `json:"code" gorm:"primaryKey;column:code"`
	Name  string `json:"name" gorm:"column:name"`
	Notes string `json:"notes,omitempty" gorm:"column:notes"`
}

// ScheduleSnapshot stores the latest fetched schedule payload for a code.
// Payload is the JSON-encoded hdo.ScheduleSnapshot.
type ScheduleSnapshot struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	Code      int       `json:"code" gorm:"uniqueIndex;column:code"`
	Category  string    `json:"category" gorm:"column:category"`
	RateType  string    `json:"rate_type" gorm:"column:rate_type"`
	Payload   []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// Setting is a key/value service setting.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the outcome of the last run of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    bool      `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

// EmailConfig holds configuration for schedule-change email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp" or "sendgrid"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	ToAddress   string    `json:"to_address" gorm:"column:to_address"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"` // For Sendgrid
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
