package reconcile

import "sort"

// Aggregate groups deduplicated events by driver for the target date and
// reduces each group to a DaySummary. Drivers with no events on the date are
// absent from the result, never present as an empty entry.
//
// An event with a day-offset clock belongs to the date its base date rolls
// into; an event with no date at all is assumed to belong to the run's target
// date (time-only exports).
func Aggregate(events []Event, targetDate string) map[string]DaySummary {
	type acc struct {
		firstOn    *Clock
		lastOff    *Clock
		firstOnRaw string
		assets     map[string]struct{}
		locations  map[string]struct{}
		count      int
	}
	byDriver := make(map[string]*acc)

	for _, ev := range events {
		if !onDate(ev, targetDate) {
			continue
		}
		a := byDriver[ev.DriverKey]
		if a == nil {
			a = &acc{assets: make(map[string]struct{}), locations: make(map[string]struct{})}
			byDriver[ev.DriverKey] = a
		}
		a.count++
		if ev.AssetKey != "" {
			a.assets[ev.AssetKey] = struct{}{}
		}
		if ev.Location != "" {
			a.locations[ev.Location] = struct{}{}
		}

		switch {
		case ev.Kind.IsOn():
			if ev.HasClock {
				c := ev.Clock
				if a.firstOn == nil || c.Minutes() < a.firstOn.Minutes() {
					a.firstOn = &c
				}
			} else if ev.RawTime != "" && a.firstOnRaw == "" {
				// A start event whose time existed but did not parse. Kept so
				// the classifier can report Unknown with the offending value.
				a.firstOnRaw = ev.RawTime
			}
		case ev.Kind.IsOff():
			if ev.HasClock {
				c := ev.Clock
				if a.lastOff == nil || c.Minutes() > a.lastOff.Minutes() {
					a.lastOff = &c
				}
			}
		}
	}

	out := make(map[string]DaySummary, len(byDriver))
	for driver, a := range byDriver {
		s := DaySummary{
			DriverKey:     driver,
			Date:          targetDate,
			FirstOn:       a.firstOn,
			LastOff:       a.lastOff,
			AssetIDs:      sortedKeys(a.assets),
			Locations:     sortedKeys(a.locations),
			ActivityCount: a.count,
		}
		if s.FirstOn == nil {
			s.FirstOnRaw = a.firstOnRaw
		}
		out[driver] = s
	}
	return out
}

// onDate reports whether an event belongs to the target date. A dated event
// matches on its own date (a day-offset clock then just orders it after
// midnight within that shift), or when its date plus day offset rolls into
// the target. Time-only events inherit the target date.
func onDate(ev Event, targetDate string) bool {
	if ev.Date == "" {
		return true
	}
	if ev.Date == targetDate {
		return true
	}
	if ev.HasClock && ev.Clock.DayOffset != 0 {
		return addDays(ev.Date, ev.Clock.DayOffset) == targetDate
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
