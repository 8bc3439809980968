package reconcile

import "testing"

func testTable(header []string, rows ...[]string) *Table {
	return &Table{Source: "test.csv", Header: header, Rows: rows}
}

func TestNormalize_BasicRows(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Driver", "Unit", "Event", "Date", "Time", "Location"},
		[]string{" Jane  Doe ", "EX-45", "Key On", "2026-03-05", "07:20", "ZBBB Yard"},
		[]string{"Jane Doe", "EX-45", "Key Off", "2026-03-05", "17:05", "ZBBB Yard"},
	))
	if res.RowsRead != 2 || res.Dropped != 0 || len(res.Events) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	ev := res.Events[0]
	if ev.DriverKey != "Jane Doe" {
		t.Fatalf("whitespace not collapsed: %q", ev.DriverKey)
	}
	if ev.Kind != KindKeyOn || res.Events[1].Kind != KindKeyOff {
		t.Fatalf("kinds = %v, %v", ev.Kind, res.Events[1].Kind)
	}
	if ev.Date != "2026-03-05" || !ev.HasClock || ev.Clock.Hour != 7 || ev.Clock.Minute != 20 {
		t.Fatalf("time not resolved: %+v", ev)
	}
	if ev.Source != "test.csv" || ev.Row != 0 {
		t.Fatalf("provenance missing: %+v", ev)
	}
}

func TestNormalize_DropsRowsWithoutIdentity(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Driver", "Unit", "Time"},
		[]string{"", "", "07:00"},
		[]string{"Jane Doe", "", "07:10"},
	))
	if res.Dropped != 1 || len(res.Events) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestNormalize_AssetOnlyRowKeysByAsset(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Driver", "Unit", "Time"},
		[]string{"", "EX-45", "07:10"},
	))
	if len(res.Events) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Events[0].DriverKey != "EX-45" {
		t.Fatalf("driver key should fall back to asset: %q", res.Events[0].DriverKey)
	}
	// The emitted event never has both driver key and kind empty.
	if res.Events[0].DriverKey == "" && res.Events[0].Kind == "" {
		t.Fatal("invariant violated")
	}
}

func TestNormalize_UnparseableTimeKeepsRaw(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Driver", "Event", "Time"},
		[]string{"Jane Doe", "Key On", "about nine"},
	))
	if len(res.Events) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	ev := res.Events[0]
	if ev.HasClock {
		t.Fatal("clock should not have parsed")
	}
	if ev.RawTime != "about nine" {
		t.Fatalf("raw time lost: %q", ev.RawTime)
	}
}

func TestNormalize_CombinedTimestampColumn(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Operator", "Timestamp", "Activity"},
		[]string{"John Roe", "2026-03-05 06:55", "Shift Start"},
	))
	ev := res.Events[0]
	if ev.Date != "2026-03-05" || ev.Clock.Hour != 6 || ev.Clock.Minute != 55 {
		t.Fatalf("timestamp not split: %+v", ev)
	}
	if ev.Kind != KindActivityStart {
		t.Fatalf("kind = %v", ev.Kind)
	}
}

func TestNormalize_AmountParsing(t *testing.T) {
	n := Normalizer{}
	res := n.Normalize(testTable(
		[]string{"Driver", "Hours"},
		[]string{"Jane Doe", "1,208.5"},
		[]string{"John Roe", "n/a"},
	))
	if !res.Events[0].HasAmount || res.Events[0].Amount != 1208.5 {
		t.Fatalf("amount = %+v", res.Events[0])
	}
	if res.Events[1].HasAmount {
		t.Fatal("bad amount cell should not set HasAmount")
	}
}

func TestKindFromText(t *testing.T) {
	cases := []struct {
		in   string
		want EventKind
	}{
		{"Key On", KindKeyOn},
		{"IGNITION OFF", KindKeyOff},
		{"Shift Start", KindActivityStart},
		{"Shift End", KindActivityEnd},
		{"stopped", KindActivityEnd},
		{"idle", KindGeneric},
		{"", KindGeneric},
		{"construction", KindGeneric},
	}
	for _, c := range cases {
		if got := kindFromText(c.in); got != c.want {
			t.Fatalf("kindFromText(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
