package hdo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// parseClock parses "H:MM" or "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// periodsFor selects the period list matching the instant's day type.
func periodsFor(snap *ScheduleSnapshot, t time.Time) []Period {
	if isWeekend(t) {
		return snap.Weekend
	}
	return snap.Workday
}

// IsLowTariffAt reports whether the instant falls inside a low-tariff
// period of the snapshot. A period whose end is numerically before its
// start crosses midnight and matches when the instant is at-or-after the
// start or before the end. No match means high tariff, not unknown.
func IsLowTariffAt(snap *ScheduleSnapshot, t time.Time) bool {
	now := minutesOfDay(t)

	for _, period := range periodsFor(snap, t) {
		start, err := parseClock(period.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(period.End)
		if err != nil {
			continue
		}

		if end < start {
			// Midnight crossover.
			if now >= start || now < end {
				return true
			}
		} else if start <= now && now < end {
			return true
		}
	}

	return false
}

// NextSwitch predicts the next tariff change after the instant. Periods are
// scanned in start order: a period starting strictly after the instant is a
// switch to low tariff; otherwise a period covering the instant is a switch
// to high tariff at its end; otherwise the first period of the next day's
// applicable list is returned, dated tomorrow. Nil when the list is empty.
//
// Unlike IsLowTariffAt, the covering-period check does not treat
// midnight-crossing ends specially, so the two queries can disagree at
// boundary instants inside a wraparound period.
func NextSwitch(snap *ScheduleSnapshot, t time.Time) *SwitchEvent {
	now := minutesOfDay(t)

	periods := append([]Period(nil), periodsFor(snap, t)...)
	sort.SliceStable(periods, func(i, j int) bool {
		si, erri := parseClock(periods[i].Start)
		sj, errj := parseClock(periods[j].Start)
		if erri != nil || errj != nil {
			return erri == nil
		}
		return si < sj
	})

	for _, period := range periods {
		start, err := parseClock(period.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(period.End)
		if err != nil {
			continue
		}

		if start > now {
			return &SwitchEvent{
				Time:     period.Start,
				At:       atClock(t, start),
				ToTariff: TariffLow,
				Period:   period,
			}
		}

		if end > now && start <= now {
			return &SwitchEvent{
				Time:     period.End,
				At:       atClock(t, end),
				ToTariff: TariffHigh,
				Period:   period,
			}
		}
	}

	// Past every period today: the first period of tomorrow's applicable
	// day type switches to low.
	tomorrow := t.AddDate(0, 0, 1)
	var first *Period
	firstStart := 0
	for _, period := range periodsFor(snap, tomorrow) {
		start, err := parseClock(period.Start)
		if err != nil {
			continue
		}
		if first == nil || start < firstStart {
			p := period
			first = &p
			firstStart = start
		}
	}
	if first != nil {
		return &SwitchEvent{
			Time:     first.Start,
			At:       atClock(tomorrow, firstStart),
			ToTariff: TariffLow,
			Period:   *first,
		}
	}

	return nil
}

// atClock combines the date of t with a minutes-since-midnight clock value.
func atClock(t time.Time, minutes int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), minutes/60, minutes%60, 0, 0, t.Location())
}

// TodayPeriods projects the snapshot onto the day of the instant.
func TodayPeriods(snap *ScheduleSnapshot, t time.Time) TodaySchedule {
	dayType := "workday"
	if isWeekend(t) {
		dayType = "weekend"
	}
	periods := periodsFor(snap, t)
	return TodaySchedule{
		DayType:     dayType,
		Periods:     periods,
		PeriodCount: len(periods),
	}
}
