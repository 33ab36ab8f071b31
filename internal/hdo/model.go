package hdo

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Tariff category a schedule belongs to, determined by which rate table on
// the ZSE page the entry came from.
const (
	CategoryHousehold = "household"
	CategoryBusiness  = "business"
)

// Tariff labels. Only low-tariff periods are materialized; high tariff is
// the implicit complement of the schedule.
const (
	TariffLow  = "low"
	TariffHigh = "high"
)

// Code is a tariff code as it appears in the ZSE rate tables. The source
// data is inconsistent about encoding codes as numbers or strings, so Code
// accepts both and normalizes to an integer.
type Code int

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	s := string(b)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("tariff code %q is not numeric", s)
		}
		n = int(f)
	}
	*c = Code(n)
	return nil
}

// RawRateEntry is one tariff-code entry as found in a rate table on the
// source page. Entries are rebuilt on every fetch and discarded after
// normalization.
type RawRateEntry struct {
	Code      Code          `json:"code"`
	ForRate   string        `json:"for_rate"`
	Intervals []RawInterval `json:"intervals"`
}

// RawInterval is one switching window from the source page. An interval may
// apply to both the workday and the weekend set at the same time.
type RawInterval struct {
	TType   string `json:"t_type"`
	TFrom   string `json:"t_from"`
	TTo     string `json:"t_to"`
	Weekday bool   `json:"weekday"`
	Weekend bool   `json:"weekend"`
	Meaning string `json:"meaning"`
	ForRate string `json:"for_rate"`
}

// Period is a normalized low-tariff window. Start and End are wall-clock
// times of day ("H:MM" or "HH:MM", 24h) in the locale of the data source.
type Period struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Tariff  string `json:"tariff"`
	Meaning string `json:"meaning"`
	ForRate string `json:"for_rate"`
}

// Schedule holds the normalized low-tariff periods for one code, split by
// day type. Periods are kept in source order; callers that need them sorted
// (next-switch computation) sort on demand.
type Schedule struct {
	Workday []Period `json:"workday"`
	Weekend []Period `json:"weekend"`
}

// ScheduleSnapshot is the externally visible result of looking up one HDO
// number. It is created fresh on every successful lookup; callers own any
// caching.
type ScheduleSnapshot struct {
	HDONumber   int       `json:"hdo_number"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	RateType    string    `json:"rate_type"`
	Workday     []Period  `json:"workday"`
	Weekend     []Period  `json:"weekend"`
	LastUpdated time.Time `json:"last_updated"`
	Source      string    `json:"source"`
}

// SwitchEvent is a predicted future instant at which the active tariff
// changes.
type SwitchEvent struct {
	Time     string    `json:"time"`
	At       time.Time `json:"datetime"`
	ToTariff string    `json:"to_tariff"`
	Period   Period    `json:"period"`
}

// TodaySchedule is the read-only projection of the periods applicable on
// the day of a given instant.
type TodaySchedule struct {
	DayType     string   `json:"day_type"`
	Periods     []Period `json:"periods"`
	PeriodCount int      `json:"period_count"`
}
