package reconcile

import (
	"strconv"
	"strings"
)

// Table is one loaded source file as rows and columns. Produced by the file
// loader; the normalizer itself performs no I/O.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// Normalizer maps arbitrary vendor columns onto the canonical event schema.
type Normalizer struct {
	Keywords KeywordTable
}

// NormalizeResult is the output of one file pass. Dropped counts rows with
// neither driver nor asset identity; they are logged by the caller, never an
// error.
type NormalizeResult struct {
	Events   []Event
	RowsRead int
	Dropped  int
}

// Normalize converts every row of the table into canonical events. Column
// discovery runs once against the header and is reused for all rows.
func (n *Normalizer) Normalize(t *Table) NormalizeResult {
	res := NormalizeResult{}
	if t == nil || len(t.Header) == 0 {
		return res
	}
	kw := n.Keywords
	if len(kw.Driver) == 0 && len(kw.Asset) == 0 {
		kw = DefaultKeywords()
	}
	cols := DiscoverColumns(t.Header, kw)
	if !cols.HasIdentity() {
		res.RowsRead = len(t.Rows)
		res.Dropped = len(t.Rows)
		return res
	}

	for i, row := range t.Rows {
		res.RowsRead++
		driver := cellAt(row, cols.Driver)
		asset := cellAt(row, cols.Asset)
		if driver == "" && asset == "" {
			res.Dropped++
			continue
		}

		ev := Event{
			DriverKey: normalizeKey(driver),
			AssetKey:  normalizeKey(asset),
			Kind:      kindFromText(cellAt(row, cols.EventType)),
			Location:  cellAt(row, cols.Location),
			Source:    t.Source,
			Row:       i,
		}
		if ev.DriverKey == "" {
			// Best-effort identity: an asset-only row still belongs to a
			// timeline, keyed by the asset.
			ev.DriverKey = ev.AssetKey
		}

		if amt := cellAt(row, cols.Amount); amt != "" {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(amt, ",", ""), 64); err == nil {
				ev.Amount = f
				ev.HasAmount = true
			}
		}

		n.fillTime(&ev, row, cols)
		res.Events = append(res.Events, ev)
	}
	return res
}

// fillTime resolves date and clock from whichever time columns the file has:
// a combined timestamp, a date plus a separate clock, or a clock alone.
func (n *Normalizer) fillTime(ev *Event, row []string, cols ColumnMap) {
	if raw := cellAt(row, cols.Timestamp); raw != "" {
		ev.RawTime = raw
		if st, err := ParseStamp(raw); err == nil {
			ev.Date = st.Date
			ev.Clock = st.Clock
			ev.HasClock = true
		}
		return
	}

	if raw := cellAt(row, cols.Date); raw != "" {
		if d, err := ParseDate(raw); err == nil {
			ev.Date = d
		}
	}
	if raw := cellAt(row, cols.Time); raw != "" {
		ev.RawTime = raw
		if c, err := ParseClock(raw); err == nil {
			ev.Clock = c
			ev.HasClock = true
		}
	}
}

// normalizeKey trims and collapses interior whitespace so "Jane  Doe" and
// "Jane Doe" produce one timeline.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// kindFromText classifies free-form event type text. "on"/"start" words mark
// the beginning of work, "off"/"end" the end; key/ignition wording selects
// the key-cycle kinds over the activity kinds.
func kindFromText(text string) EventKind {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return KindGeneric
	}
	keyed := strings.Contains(s, "key") || strings.Contains(s, "ignition")
	switch {
	case strings.Contains(s, "off") || strings.Contains(s, "end") || strings.Contains(s, "stop"):
		if keyed {
			return KindKeyOff
		}
		return KindActivityEnd
	case hasWord(s, "on") || strings.Contains(s, "start") || strings.Contains(s, "begin"):
		if keyed {
			return KindKeyOn
		}
		return KindActivityStart
	default:
		return KindGeneric
	}
}

// hasWord matches "on" as a whole word only; substring matching would hit
// words like "construction".
func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	}) {
		if f == word {
			return true
		}
	}
	return false
}
