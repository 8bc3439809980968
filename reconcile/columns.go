package reconcile

import "strings"

// KeywordTable drives column discovery. Matching is case-insensitive
// substring containment against the header cells, so vendor variations like
// "Operator Name" or "EQUIPMENT_ID" resolve without per-vendor code.
type KeywordTable struct {
	Driver    []string
	Asset     []string
	EventType []string
	Date      []string
	Time      []string
	Location  []string
	Amount    []string
}

// DefaultKeywords covers the column names seen across fleet telemetry
// exports. Callers can supply their own table through configuration.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		Driver:    []string{"driver", "operator", "employee", "worker", "name"},
		Asset:     []string{"asset", "equipment", "unit", "vehicle", "machine", "truck"},
		EventType: []string{"event", "action", "activity", "status", "type"},
		Date:      []string{"date", "day"},
		Time:      []string{"time", "timestamp", "clock"},
		Location:  []string{"location", "site", "job", "yard", "area"},
		Amount:    []string{"hours", "amount", "quantity", "usage", "duration", "total"},
	}
}

// ColumnMap holds the discovered column index for each canonical field, or
// -1 when the file has no such column. Built once per file; column structure
// is assumed stable within one file.
type ColumnMap struct {
	Driver    int
	Asset     int
	EventType int
	Date      int
	Time      int
	Timestamp int // combined date+time column
	Location  int
	Amount    int
}

// HasIdentity reports whether the file carries any usable identity column.
func (m ColumnMap) HasIdentity() bool {
	return m.Driver >= 0 || m.Asset >= 0
}

// DiscoverColumns matches a header row against the keyword table. A pure
// function of (header, keywords): no I/O, deterministic, first matching
// column wins per field.
func DiscoverColumns(header []string, kw KeywordTable) ColumnMap {
	m := ColumnMap{Driver: -1, Asset: -1, EventType: -1, Date: -1, Time: -1, Timestamp: -1, Location: -1, Amount: -1}
	for i, h := range header {
		cell := strings.ToLower(strings.TrimSpace(h))
		if cell == "" {
			continue
		}
		hasDate := containsAny(cell, kw.Date)
		hasTime := containsAny(cell, kw.Time)
		switch {
		case m.Timestamp < 0 && (strings.Contains(cell, "timestamp") || (hasDate && hasTime)):
			m.Timestamp = i
		case m.Date < 0 && hasDate && !hasTime:
			m.Date = i
		case m.Time < 0 && hasTime && !hasDate:
			m.Time = i
		case m.Driver < 0 && containsAny(cell, kw.Driver):
			m.Driver = i
		case m.Asset < 0 && containsAny(cell, kw.Asset):
			m.Asset = i
		case m.Location < 0 && containsAny(cell, kw.Location):
			m.Location = i
		case m.EventType < 0 && containsAny(cell, kw.EventType):
			m.EventType = i
		case m.Amount < 0 && containsAny(cell, kw.Amount):
			m.Amount = i
		}
	}
	return m
}

func containsAny(cell string, words []string) bool {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.Contains(cell, w) {
			return true
		}
	}
	return false
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
