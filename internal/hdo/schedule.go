package hdo

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
)

// GetSchedule fetches the page once, scans both rate tables and returns a
// snapshot for the requested HDO number. Codes are compared as integers
// because the source encodes them inconsistently as numbers or strings.
// An unknown code yields (nil, nil): a normal outcome, distinct from a
// fetch failure.
func (p *Parser) GetSchedule(ctx context.Context, hdoNumber int) (*ScheduleSnapshot, error) {
	html, err := p.FetchPage(ctx)
	if err != nil {
		return nil, err
	}
	return p.scheduleFromPage(html, hdoNumber), nil
}

func (p *Parser) scheduleFromPage(html string, hdoNumber int) *ScheduleSnapshot {
	household := extractArray(html, householdVar)
	business := extractArray(html, businessVar)

	for i, rate := range append(append([]RawRateEntry{}, household...), business...) {
		if int(rate.Code) != hdoNumber {
			continue
		}

		category := CategoryHousehold
		if i >= len(household) {
			category = CategoryBusiness
		}

		schedule := normalizeIntervals(rate.Intervals)
		return &ScheduleSnapshot{
			HDONumber:   hdoNumber,
			Name:        fmt.Sprintf("HDO %d", hdoNumber),
			Category:    category,
			RateType:    rate.ForRate,
			Workday:     schedule.Workday,
			Weekend:     schedule.Weekend,
			LastUpdated: time.Now(),
			Source:      p.url,
		}
	}

	log.Printf("hdo: code %d not found in either rate table", hdoNumber)
	return nil
}

// ListCodes returns every HDO number present in either rate table,
// deduplicated and ascending. Used to present a selection list before a
// schedule is chosen.
func (p *Parser) ListCodes(ctx context.Context) ([]int, error) {
	html, err := p.FetchPage(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, rate := range extractArray(html, householdVar) {
		seen[int(rate.Code)] = true
	}
	for _, rate := range extractArray(html, businessVar) {
		seen[int(rate.Code)] = true
	}

	codes := make([]int, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes, nil
}

// GetAllSchedules fetches once and returns a snapshot per code found in
// either table. When a code appears in both tables the household entry
// wins, matching the linear first-match scan of GetSchedule.
func (p *Parser) GetAllSchedules(ctx context.Context) (map[int]*ScheduleSnapshot, error) {
	html, err := p.FetchPage(ctx)
	if err != nil {
		return nil, err
	}

	household := extractArray(html, householdVar)
	business := extractArray(html, businessVar)

	out := make(map[int]*ScheduleSnapshot)
	add := func(entries []RawRateEntry, category string) {
		for _, rate := range entries {
			code := int(rate.Code)
			if _, ok := out[code]; ok {
				continue
			}
			schedule := normalizeIntervals(rate.Intervals)
			out[code] = &ScheduleSnapshot{
				HDONumber:   code,
				Name:        fmt.Sprintf("HDO %d", code),
				Category:    category,
				RateType:    rate.ForRate,
				Workday:     schedule.Workday,
				Weekend:     schedule.Weekend,
				LastUpdated: time.Now(),
				Source:      p.url,
			}
		}
	}
	add(household, CategoryHousehold)
	add(business, CategoryBusiness)

	return out, nil
}

// IsLowTariffNow reports whether the low tariff is active right now for the
// given code. found is false when the code exists in neither table.
func (p *Parser) IsLowTariffNow(ctx context.Context, hdoNumber int) (low, found bool, err error) {
	snap, err := p.GetSchedule(ctx, hdoNumber)
	if err != nil {
		return false, false, err
	}
	if snap == nil {
		return false, false, nil
	}
	return IsLowTariffAt(snap, time.Now()), true, nil
}
