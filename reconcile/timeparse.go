package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Clock is a wall-clock time of day. DayOffset is 1 for values tagged as
// next-day (overnight rollover); the aggregator uses it to resolve which
// calendar date the value belongs to.
type Clock struct {
	Hour      int `json:"hour"`
	Minute    int `json:"minute"`
	Second    int `json:"second,omitempty"`
	DayOffset int `json:"day_offset,omitempty"`
}

// Minutes returns minutes since midnight of the base day, including the day
// offset. Comparable across an overnight rollover.
func (c Clock) Minutes() int {
	return c.DayOffset*24*60 + c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	s := fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
	if c.Second != 0 {
		s += fmt.Sprintf(":%02d", c.Second)
	}
	if c.DayOffset > 0 {
		s += fmt.Sprintf(" (+%d)", c.DayOffset)
	}
	return s
}

// Stamp is a parsed timestamp cell: a clock, plus a date when the source
// value carried one.
type Stamp struct {
	Date  string // "2006-01-02", empty for time-only values
	Clock Clock
}

// ParseError reports a value that existed but could not be interpreted as a
// time. It is a sentinel result, not an exceptional condition: callers
// attribute an Unknown classification to it and keep the raw text.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable time: %q", e.Raw)
}

// Suffixes marking an overnight rollover, e.g. "23:30 +1" or "01:15 (next day)".
var dayOffsetRe = regexp.MustCompile(`(?i)\s*(\(\+1\)|\+1d?|\(next day\))\s*$`)

// Layouts are tried in order; the first successful parse wins. Mixed vendor
// exports use both 24h and AM/PM forms, with and without seconds.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"03:04:05 PM",
	"3:04 PM",
	"03:04 PM",
	"3:04PM",
	"15.04.05",
	"15.04",
}

var stampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 03:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01-02-2006 15:04:05",
	"01-02-2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseClock parses a time-of-day string. It never panics and never returns
// a partial value: the error is always a *ParseError carrying the raw input.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Clock{}, &ParseError{Raw: raw}
	}
	offset := 0
	if loc := dayOffsetRe.FindStringIndex(s); loc != nil {
		offset = 1
		s = strings.TrimSpace(s[:loc[0]])
	}
	// Excel stores a bare time as a fraction of a day. Checked before the
	// dotted layouts so "0.25" reads as 06:00, not 00:25.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f < 1 {
		mins := int(f*24*60 + 0.5)
		return Clock{Hour: (mins / 60) % 24, Minute: mins % 60, DayOffset: offset}, nil
	}
	up := strings.ToUpper(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, up); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), DayOffset: offset}, nil
		}
	}
	// Fall back to full datetime forms and keep just the clock.
	if st, err := ParseStamp(raw); err == nil {
		return st.Clock, nil
	}
	return Clock{}, &ParseError{Raw: raw}
}

// ParseStamp parses a full datetime string, or an Excel serial date number.
func ParseStamp(raw string) (Stamp, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Stamp{}, &ParseError{Raw: raw}
	}
	offset := 0
	if loc := dayOffsetRe.FindStringIndex(s); loc != nil {
		offset = 1
		s = strings.TrimSpace(s[:loc[0]])
	}
	up := strings.ToUpper(s)
	for _, layout := range stampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil && strings.Contains(layout, "PM") {
			t, err = time.Parse(layout, up)
		}
		if err == nil {
			return Stamp{
				Date:  t.Format("2006-01-02"),
				Clock: Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), DayOffset: offset},
			}, nil
		}
	}
	// Excel serial date (days since the 1900 epoch, fraction = time of day).
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 && serial < 200000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return Stamp{
				Date:  t.Format("2006-01-02"),
				Clock: Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), DayOffset: offset},
			}, nil
		}
	}
	return Stamp{}, &ParseError{Raw: raw}
}

// ParseDate parses a date-only cell to "2006-01-02".
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ParseError{Raw: raw}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 59 && serial < 200000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	if st, err := ParseStamp(s); err == nil && st.Date != "" {
		return st.Date, nil
	}
	return "", &ParseError{Raw: raw}
}

// addDays shifts a "2006-01-02" date string by n days.
func addDays(date string, n int) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format("2006-01-02")
}
