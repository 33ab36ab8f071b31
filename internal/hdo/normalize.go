package hdo

// lowTariffType is the t_type value the ZSE tables use for low-tariff
// windows. Everything else is discarded; high tariff is never materialized.
const lowTariffType = "nt"

// normalizeIntervals filters raw intervals down to low-tariff periods and
// splits them into the workday and weekend lists. An interval flagged for
// both day types is duplicated into both lists. No deduplication happens
// here: repeated source entries stay repeated.
func normalizeIntervals(intervals []RawInterval) Schedule {
	s := Schedule{
		Workday: []Period{},
		Weekend: []Period{},
	}

	for _, iv := range intervals {
		if iv.TType != lowTariffType {
			continue
		}

		period := Period{
			Start:   iv.TFrom,
			End:     iv.TTo,
			Tariff:  TariffLow,
			Meaning: iv.Meaning,
			ForRate: iv.ForRate,
		}

		if iv.Weekday {
			s.Workday = append(s.Workday, period)
		}
		if iv.Weekend {
			s.Weekend = append(s.Weekend, period)
		}
	}

	return s
}
