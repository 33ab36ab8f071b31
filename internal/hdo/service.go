package hdo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hdotools/hdomanager/internal/storage"
)

// Notifier is told when a refreshed schedule differs from the cached one.
type Notifier interface {
	ScheduleChanged(ctx context.Context, snap *ScheduleSnapshot) error
}

// Service layers snapshot caching and change detection on top of the live
// parser. The parser itself never caches; cadence and retry policy live
// with the service's callers (the cron worker and the API).
type Service struct {
	parser   *Parser
	store    storage.Storage // may be nil for live-only mode
	notifier Notifier        // may be nil
}

// NewService returns a live-only service: every call fetches the page.
func NewService(p *Parser) *Service {
	return &Service{parser: p}
}

// NewServiceWithStorage returns a Service that serves cached snapshots and
// writes refreshed ones back to the given storage backend.
func NewServiceWithStorage(p *Parser, st storage.Storage) *Service {
	return &Service{parser: p, store: st}
}

// SetNotifier installs a schedule-change notifier.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Parser exposes the underlying live parser for discovery calls.
func (s *Service) Parser() *Parser { return s.parser }

// GetSchedule returns the schedule for a code, preferring a cached snapshot.
// On cache miss it fetches live and writes the result back. (nil, nil)
// means the code exists in neither rate table.
func (s *Service) GetSchedule(ctx context.Context, code int) (*ScheduleSnapshot, error) {
	if s.store != nil {
		row, err := s.store.GetSnapshot(ctx, code)
		if err == nil && row != nil && len(row.Payload) > 0 {
			var snap ScheduleSnapshot
			if err := json.Unmarshal(row.Payload, &snap); err == nil {
				return &snap, nil
			}
			// Undecodable cache rows fall through to a live fetch.
		}
	}
	return s.refresh(ctx, code)
}

// ForceRefresh bypasses the cache and fetches live.
func (s *Service) ForceRefresh(ctx context.Context, code int) (*ScheduleSnapshot, error) {
	return s.refresh(ctx, code)
}

func (s *Service) refresh(ctx context.Context, code int) (*ScheduleSnapshot, error) {
	snap, err := s.parser.GetSchedule(ctx, code)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot for code %d: %w", code, err)
	}

	if s.store != nil {
		prev, err := s.store.GetSnapshot(ctx, code)
		if err != nil {
			log.Printf("hdo: read cached snapshot for %d failed: %v", code, err)
		}

		// Best-effort write-back.
		if err := s.store.SaveSnapshot(ctx, storage.ScheduleSnapshot{
			Code:      code,
			Category:  snap.Category,
			RateType:  snap.RateType,
			Payload:   payload,
			FetchedAt: snap.LastUpdated,
		}); err != nil {
			log.Printf("hdo: save snapshot for %d failed: %v", code, err)
		}

		if s.notifier != nil && prev != nil && len(prev.Payload) > 0 && scheduleChanged(prev.Payload, payload) {
			log.Printf("hdo: schedule for %d changed since last fetch", code)
			if err := s.notifier.ScheduleChanged(ctx, snap); err != nil {
				log.Printf("hdo: schedule-change notification for %d failed: %v", code, err)
			}
		}
	}

	return snap, nil
}

// scheduleChanged compares snapshot payloads ignoring the fetch timestamp,
// which differs on every refresh.
func scheduleChanged(prev, next []byte) bool {
	return !bytes.Equal(stripTimestamp(prev), stripTimestamp(next))
}

func stripTimestamp(payload []byte) []byte {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return payload
	}
	delete(m, "last_updated")
	out, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return out
}
