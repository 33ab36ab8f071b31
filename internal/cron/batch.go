package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hdotools/hdomanager/internal/hdo"
	"github.com/hdotools/hdomanager/internal/metrics"
	"github.com/hdotools/hdomanager/internal/storage"
)

// RunBatch periodically sweeps EVERY code published on the source page into
// storage with a single fetch per cycle, using advisory locks so that
// multiple replicas do not run the sweep simultaneously.
func RunBatch(ctx context.Context, driver, dsn string, intervalSec int) error {
	if driver != "postgrespool" {
		return fmt.Errorf("batch worker requires HDOMANAGER_DB_DRIVER=postgrespool (got %q)", driver)
	}

	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("batch: open storage: %w", err)
	}
	defer st.Close()

	pg, ok := st.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("batch: storage is not PostgresPoolStorage")
	}

	parser := hdo.NewParser(nil)
	defer parser.Close()

	if intervalSec <= 0 {
		intervalSec = 86400
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	jobName := "batch_sweep"
	const advisoryKey int64 = 48300146

	log.Printf("batch worker starting: interval=%ds driver=postgrespool", intervalSec)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			started := time.Now()

			gotLock, err := pg.AcquireAdvisoryLock(ctx, advisoryKey)
			if err != nil {
				log.Printf("batch: lock acquire error: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				continue
			}
			if !gotLock {
				log.Printf("batch: lock held by another node, skipping this cycle")
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := pg.ReleaseAdvisoryLock(ctx, advisoryKey); err != nil {
						log.Printf("batch: lock release error: %v", err)
					}
				}()

				runErr = sweepAll(ctx, parser, st)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)

			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, storage.ScheduledJob{
				Name:           jobName,
				LastRunAt:      started,
				LastDurationMs: time.Since(started).Milliseconds(),
				LastSuccess:    runErr == nil,
				LastError:      errMsg,
			}); err != nil {
				log.Printf("batch: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("batch: run completed with error: %v", runErr)
			} else {
				log.Printf("batch: run completed successfully")
			}
		}
	}
}

// sweepAll stores a snapshot for every code present on the page, one page
// fetch per sweep.
func sweepAll(ctx context.Context, parser *hdo.Parser, st storage.Storage) error {
	all, err := parser.GetAllSchedules(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return fmt.Errorf("sweep extracted no schedules")
	}

	var firstErr error
	for code, snap := range all {
		payload, err := json.Marshal(snap)
		if err != nil {
			log.Printf("batch: encode snapshot %d failed: %v", code, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := st.SaveSnapshot(ctx, storage.ScheduleSnapshot{
			Code:      code,
			Category:  snap.Category,
			RateType:  snap.RateType,
			Payload:   payload,
			FetchedAt: snap.LastUpdated,
		}); err != nil {
			log.Printf("batch: save snapshot %d failed: %v", code, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	log.Printf("batch: swept %d schedules", len(all))
	return firstErr
}
