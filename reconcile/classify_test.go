package reconcile

import (
	"strings"
	"testing"
)

func testSchedule() Schedule {
	return Schedule{
		Start:        Clock{Hour: 7},
		End:          Clock{Hour: 17, Minute: 30},
		GraceMinutes: 15,
	}
}

func daySummary(firstOn, lastOff *Clock) DaySummary {
	return DaySummary{DriverKey: "Jane Doe", Date: "2026-03-05", FirstOn: firstOn, LastOff: lastOff}
}

func clk(h, m int) *Clock { return &Clock{Hour: h, Minute: m} }

func TestClassify_GraceBoundary(t *testing.T) {
	cases := []struct {
		first     Clock
		status    Status
		deviation int
	}{
		{Clock{Hour: 7, Minute: 15}, StatusOnTime, 0}, // exactly at grace edge
		{Clock{Hour: 7, Minute: 16}, StatusLate, 1},
		{Clock{Hour: 6, Minute: 50}, StatusOnTime, 0}, // early arrival never penalized
	}
	for _, c := range cases {
		first := c.first
		res := Classify(daySummary(&first, nil), testSchedule())
		if res.Status != c.status || res.DeviationMinutes != c.deviation {
			t.Fatalf("first=%v: got %v/%d, want %v/%d", c.first, res.Status, res.DeviationMinutes, c.status, c.deviation)
		}
	}
}

func TestClassify_LateScenario(t *testing.T) {
	res := Classify(daySummary(clk(7, 20), clk(17, 5)), testSchedule())
	if res.Status != StatusLate {
		t.Fatalf("status = %v", res.Status)
	}
	if res.LateMinutes != 20 {
		t.Fatalf("late minutes = %d", res.LateMinutes)
	}
	if !strings.Contains(res.Reason, "20 minutes late") {
		t.Fatalf("reason = %q", res.Reason)
	}
	// The early-end finding is still recorded for reporting even though the
	// primary status is Late.
	if res.EarlyEndMinutes != 25 {
		t.Fatalf("early-end minutes = %d", res.EarlyEndMinutes)
	}
}

func TestClassify_EarlyEnd(t *testing.T) {
	res := Classify(daySummary(clk(7, 0), clk(16, 30)), testSchedule())
	if res.Status != StatusEarlyEnd {
		t.Fatalf("status = %v", res.Status)
	}
	if res.EarlyEndMinutes != 60 {
		t.Fatalf("early-end minutes = %d", res.EarlyEndMinutes)
	}
	if !strings.Contains(res.Reason, "60 minutes early") {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestClassify_NotOnJobPrecedence(t *testing.T) {
	// No start event at all, even though an off event exists.
	res := Classify(daySummary(nil, clk(16, 0)), testSchedule())
	if res.Status != StatusNotOnJob {
		t.Fatalf("status = %v, want not_on_job", res.Status)
	}
	if res.Reason != "No start event recorded." {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestClassify_UnknownKeepsRawValue(t *testing.T) {
	sum := daySummary(nil, nil)
	sum.FirstOnRaw = "about nine"
	res := Classify(sum, testSchedule())
	if res.Status != StatusUnknown {
		t.Fatalf("status = %v", res.Status)
	}
	if !strings.Contains(res.Reason, `"about nine"`) {
		t.Fatalf("reason should carry the raw value: %q", res.Reason)
	}
}

func TestClassify_OnTimeWithinGraceBothEnds(t *testing.T) {
	res := Classify(daySummary(clk(7, 10), clk(17, 20)), testSchedule())
	if res.Status != StatusOnTime || res.DeviationMinutes != 0 {
		t.Fatalf("got %v/%d", res.Status, res.DeviationMinutes)
	}
}

func TestClassify_OvernightSchedule(t *testing.T) {
	night := Schedule{
		Start:        Clock{Hour: 19},
		End:          Clock{Hour: 4},
		GraceMinutes: 15,
	}
	// Started 19:40, quit 03:50 next day (day-offset clock).
	first := Clock{Hour: 19, Minute: 40}
	last := Clock{Hour: 3, Minute: 50, DayOffset: 1}
	res := Classify(daySummary(&first, &last), night)
	if res.Status != StatusLate {
		t.Fatalf("status = %v", res.Status)
	}
	if res.LateMinutes != 40 {
		t.Fatalf("late minutes = %d", res.LateMinutes)
	}
	if res.EarlyEndMinutes != 10 {
		t.Fatalf("early-end minutes = %d", res.EarlyEndMinutes)
	}

	// Off clock recorded without the offset marker still rebases onto the
	// shift epoch instead of producing a 15-hour phantom gap.
	plain := Clock{Hour: 3, Minute: 50}
	res = Classify(daySummary(&first, &plain), night)
	if res.EarlyEndMinutes != 10 {
		t.Fatalf("rebased early-end minutes = %d", res.EarlyEndMinutes)
	}
}

func TestScheduleBook_Resolve(t *testing.T) {
	book := ScheduleBook{
		Default: testSchedule(),
		Sites: map[string]Schedule{
			"ZBBB": {Start: Clock{Hour: 6}, End: Clock{Hour: 14}, GraceMinutes: 5},
		},
	}
	sched, code := book.Resolve([]string{"ZBBB North Yard"})
	if code != "ZBBB" || sched.Start.Hour != 6 {
		t.Fatalf("resolve = %+v code=%q", sched, code)
	}
	sched, code = book.Resolve([]string{"somewhere else"})
	if code != "" || sched.Start.Hour != 7 {
		t.Fatalf("default fallback failed: %+v code=%q", sched, code)
	}
	sched, code = book.Resolve(nil)
	if code != "" || sched.Start.Hour != 7 {
		t.Fatalf("empty locations fallback failed: %+v code=%q", sched, code)
	}
}

func TestMatchSiteCode(t *testing.T) {
	codes := []string{"ZGGG", "ZBBB"}
	if got := MatchSiteCode("unload at zbbb ramp", codes); got != "ZBBB" {
		t.Fatalf("got %q", got)
	}
	if got := MatchSiteCode("no codes here", codes); got != "" {
		t.Fatalf("got %q", got)
	}
}
