package cron

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hdotools/hdomanager/internal/alerting"
	"github.com/hdotools/hdomanager/internal/hdo"
	"github.com/hdotools/hdomanager/internal/metrics"
	"github.com/hdotools/hdomanager/internal/notification"
	"github.com/hdotools/hdomanager/internal/storage"
)

// cadencePresets maps the named refresh frequencies to cron expressions.
// The scheduled presets fire at 03:00 so a stale page is picked up before
// the morning switching windows.
var cadencePresets = map[string]string{
	"5min":   "@every 5m",
	"1hour":  "@hourly",
	"1day":   "0 3 * * *",
	"1week":  "0 3 * * 1",
	"1month": "0 3 1 * *",
}

const defaultSetting = "1week"

// nextRunAfter resolves a cadence setting (preset name, integer seconds or
// cron expression) into the next run time after lastRun.
func nextRunAfter(setting string, lastRun time.Time) time.Time {
	if expr, ok := cadencePresets[setting]; ok {
		setting = expr
	}
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(lastRun)
	}
	// Fallback to the default weekly preset.
	if sched, err := cron.ParseStandard(cadencePresets[defaultSetting]); err == nil {
		return sched.Next(lastRun)
	}
	return lastRun.Add(time.Hour)
}

// Run starts a worker that periodically refreshes the configured HDO codes.
// It requires the postgrespool driver: PostgreSQL advisory locks guarantee
// that in a multi-instance deployment only one worker executes a cycle.
func Run(ctx context.Context, driver, dsn, setting string) error {
	if driver == "" {
		driver = "postgrespool"
	}
	if driver != "postgrespool" {
		return fmt.Errorf("cron worker requires HDOMANAGER_DB_DRIVER=postgrespool (got %q)", driver)
	}

	stGeneric, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stGeneric.Close()

	pg, ok := stGeneric.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("storage driver %q is not PostgresPoolStorage", driver)
	}

	svc := hdo.NewServiceWithStorage(hdo.NewParser(nil), stGeneric)
	svc.SetNotifier(notification.NewService(stGeneric))
	alerter := alerting.New(alerting.DefaultAlertConfig())

	if setting == "" {
		setting = defaultSetting
	}
	// A stored setting overrides the startup one.
	if val, err := stGeneric.GetSetting(ctx, "refresh_setting"); err == nil && val != "" {
		setting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// First cycle runs immediately, then follows the cadence.
	nextRun := time.Now()

	jobName := "refresh_codes"
	const lockKey int64 = 48300145

	log.Printf("cron worker starting, setting=%q driver=%s", setting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			total, idle, acquired, acquires := pg.PoolStats()
			metrics.UpdateDBPoolMetrics(driver, total, idle, acquired, acquires)

			if val, err := stGeneric.GetSetting(ctx, "refresh_setting"); err == nil && val != "" && val != setting {
				log.Printf("cron: refresh setting updated from %q to %q", setting, val)
				setting = val
				nextRun = nextRunAfter(setting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			gotLock, err := pg.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = nextRunAfter(setting, started)
				continue
			}
			if !gotLock {
				log.Printf("cron: lock held by another node, skipping this cycle")
				nextRun = nextRunAfter(setting, started)
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := pg.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()

				runErr = refreshConfigured(ctx, stGeneric, svc, alerter)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)

			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := stGeneric.UpdateScheduledJob(ctx, storage.ScheduledJob{
				Name:           jobName,
				LastRunAt:      started,
				LastDurationMs: time.Since(started).Milliseconds(),
				LastSuccess:    runErr == nil,
				LastError:      errMsg,
			}); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: run completed with error: %v", runErr)
			} else {
				log.Printf("cron: run completed successfully")
			}

			nextRun = nextRunAfter(setting, started)
		}
	}
}

// refreshConfigured force-refreshes every configured code, preferring the
// codes stored in the database, falling back to the env configuration.
func refreshConfigured(ctx context.Context, st storage.Storage, svc *hdo.Service, alerter *alerting.Alerter) error {
	var codes []int
	if stored, err := st.ListCodes(ctx); err == nil && len(stored) > 0 {
		for _, c := range stored {
			codes = append(codes, c.Code)
		}
	} else {
		for _, c := range hdo.ConfiguredCodes() {
			codes = append(codes, c.Code)
		}
	}

	if len(codes) == 0 {
		log.Printf("cron: no configured codes to refresh")
		return nil
	}

	var firstErr error
	for _, code := range codes {
		snap, err := svc.ForceRefresh(ctx, code)
		if err != nil {
			log.Printf("cron: refresh code %d failed: %v", code, err)
			alerter.RefreshFailed(ctx, code, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if snap == nil {
			log.Printf("cron: code %d no longer present on source page", code)
			continue
		}
		alerter.RefreshSucceeded(ctx, code)
	}
	return firstErr
}
