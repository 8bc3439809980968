package reconcile

import (
	"fmt"
	"strings"
)

// Schedule is the expected work window a driver day is judged against.
type Schedule struct {
	Start        Clock
	End          Clock
	GraceMinutes int
}

// DefaultSchedule is used when the caller supplies nothing: a 07:00-17:30
// day with a 15 minute grace window.
func DefaultSchedule() Schedule {
	return Schedule{
		Start:        Clock{Hour: 7},
		End:          Clock{Hour: 17, Minute: 30},
		GraceMinutes: 15,
	}
}

// crossesMidnight reports an overnight window (end clock before start clock).
func (s Schedule) crossesMidnight() bool {
	return s.End.Minutes() < s.Start.Minutes()
}

// rel rebases a clock to minutes since the scheduled start, so overnight
// schedules subtract on a common epoch instead of raw wall-clock values.
func (s Schedule) rel(c Clock) int {
	m := c.Minutes() - s.Start.Minutes()
	if s.crossesMidnight() && m < -12*60 {
		m += 24 * 60
	}
	return m
}

// endRel is the scheduled end in minutes since the scheduled start.
func (s Schedule) endRel() int {
	m := s.End.Minutes() - s.Start.Minutes()
	if m < 0 {
		m += 24 * 60
	}
	return m
}

// ScheduleBook resolves the schedule for a driver day: a per-site override
// when one of the day's locations carries a known site code, otherwise the
// run-level default. Falling back is a recoverable condition, not an error.
type ScheduleBook struct {
	Default Schedule
	Sites   map[string]Schedule
}

// Resolve returns the effective schedule and the matched site code ("" when
// the default applied). Locations are scanned in their sorted set order so
// resolution is deterministic.
func (b ScheduleBook) Resolve(locations []string) (Schedule, string) {
	if len(b.Sites) == 0 {
		return b.Default, ""
	}
	codes := make([]string, 0, len(b.Sites))
	for c := range b.Sites {
		codes = append(codes, c)
	}
	for _, loc := range locations {
		if code := MatchSiteCode(loc, codes); code != "" {
			return b.Sites[code], code
		}
	}
	return b.Default, ""
}

// MatchSiteCode scans free-form location text for a known site code.
// Containment on the uppercased original maximizes hit rate against vendor
// noise around the code. Ties break on the lexically smallest code.
func MatchSiteCode(text string, codes []string) string {
	upper := strings.ToUpper(text)
	best := ""
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if strings.Contains(upper, c) && (best == "" || c < best) {
			best = c
		}
	}
	return best
}

// Classify compares one day summary against a schedule. Rules are evaluated
// in order, first match wins for the primary status:
//
//  1. no start event at all            -> NotOnJob
//  2. start time present but unparsed  -> Unknown, raw value in reason
//  3. start beyond grace after start   -> Late
//  4. end beyond grace before end      -> EarlyEnd
//  5. otherwise                        -> OnTime
//
// A day can be both late and end early; both deviations are always filled in
// so reports never re-derive them. DeviationMinutes counts minutes beyond the
// grace window; the reason text carries the full wall-clock difference.
func Classify(sum DaySummary, sched Schedule) ClassificationResult {
	res := ClassificationResult{}

	if sum.FirstOn == nil && sum.FirstOnRaw == "" {
		res.Status = StatusNotOnJob
		res.Reason = "No start event recorded."
		return res
	}
	if sum.FirstOn == nil {
		res.Status = StatusUnknown
		res.Reason = fmt.Sprintf("Unparseable start time: %q.", sum.FirstOnRaw)
		return res
	}

	lateBy := sched.rel(*sum.FirstOn)
	if lateBy > 0 {
		res.LateMinutes = lateBy
	}
	if sum.LastOff != nil {
		if earlyBy := sched.endRel() - sched.rel(*sum.LastOff); earlyBy > 0 {
			res.EarlyEndMinutes = earlyBy
		}
	}

	switch {
	case res.LateMinutes > sched.GraceMinutes:
		res.Status = StatusLate
		res.DeviationMinutes = res.LateMinutes - sched.GraceMinutes
		res.Reason = fmt.Sprintf("%d minutes late.", res.LateMinutes)
	case sum.LastOff != nil && res.EarlyEndMinutes > sched.GraceMinutes:
		res.Status = StatusEarlyEnd
		res.DeviationMinutes = res.EarlyEndMinutes - sched.GraceMinutes
		res.Reason = fmt.Sprintf("%d minutes early.", res.EarlyEndMinutes)
	default:
		res.Status = StatusOnTime
		res.Reason = "Within schedule."
	}
	return res
}
