package reconcile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_MappingInputs(t *testing.T) {
	path := writeConfig(t, `
db: /var/lib/fleet/audit.db
report_dir: /var/lib/fleet/reports
job: quarry-north
inputs:
  activity: /exports/activity/*.csv
  driving:
    glob: /exports/history/*.xlsx
    error_dir: /exports/bad
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB != "/var/lib/fleet/audit.db" || cfg.Job != "quarry-north" {
		t.Fatalf("top-level fields: %+v", cfg)
	}
	if len(cfg.Inputs.Items) != 2 {
		t.Fatalf("inputs = %+v", cfg.Inputs.Items)
	}
	byCat := map[string]InputFileConfig{}
	for _, it := range cfg.Inputs.Items {
		byCat[it.Category] = it
	}
	if byCat["activity"].Glob != "/exports/activity/*.csv" {
		t.Fatalf("activity: %+v", byCat["activity"])
	}
	if byCat["driving"].Glob != "/exports/history/*.xlsx" || byCat["driving"].ErrorDir != "/exports/bad" {
		t.Fatalf("driving: %+v", byCat["driving"])
	}
}

func TestLoadConfig_ListInputs(t *testing.T) {
	path := writeConfig(t, `
inputs:
  - glob: /exports/a/*.csv
    category: activity
  - glob: /exports/b/*.tsv
    category: refuel
    error_dir: /exports/bad
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Inputs.Items) != 2 {
		t.Fatalf("inputs = %+v", cfg.Inputs.Items)
	}
	if cfg.Inputs.Items[1].ErrorDir != "/exports/bad" {
		t.Fatalf("error dir lost: %+v", cfg.Inputs.Items[1])
	}
}

func TestLoadConfig_Schedules(t *testing.T) {
	path := writeConfig(t, `
schedule:
  start: "06:30"
  end: "18:00"
  grace_minutes: 10
site_schedules:
  night-pit:
    start: "19:00"
    end: "04:00"
roster:
  - Jane Doe
  - John Roe
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	book, err := cfg.ScheduleBook()
	if err != nil {
		t.Fatal(err)
	}
	if book.Default.Start.Minutes() != 6*60+30 || book.Default.End.Minutes() != 18*60 {
		t.Fatalf("default schedule: %+v", book.Default)
	}
	if book.Default.GraceMinutes != 10 {
		t.Fatalf("grace = %d", book.Default.GraceMinutes)
	}
	night, ok := book.Sites["NIGHT-PIT"]
	if !ok {
		t.Fatalf("site codes should be uppercased: %v", book.Sites)
	}
	if !night.crossesMidnight() {
		t.Fatalf("19:00-04:00 should cross midnight: %+v", night)
	}
	// Blank grace falls back to the default.
	if night.GraceMinutes != DefaultSchedule().GraceMinutes {
		t.Fatalf("night grace = %d", night.GraceMinutes)
	}
	if len(cfg.Roster) != 2 {
		t.Fatalf("roster = %v", cfg.Roster)
	}
}

func TestLoadConfig_BadScheduleClock(t *testing.T) {
	path := writeConfig(t, `
schedule:
  start: not-a-time
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.ScheduleBook(); err == nil {
		t.Fatal("expected error for unparseable schedule clock")
	}
}

func TestKeywordConfig_MergesOverDefaults(t *testing.T) {
	kc := &KeywordConfig{Driver: []string{"pilote"}}
	table := kc.Table()
	if len(table.Driver) != 1 || table.Driver[0] != "pilote" {
		t.Fatalf("driver keywords: %v", table.Driver)
	}
	// Untouched fields keep the defaults.
	if len(table.Asset) == 0 || len(table.EventType) == 0 {
		t.Fatalf("defaults lost: %+v", table)
	}

	var nilKC *KeywordConfig
	if got := nilKC.Table(); len(got.Driver) == 0 {
		t.Fatal("nil config should yield full defaults")
	}
}
