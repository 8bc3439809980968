package reconcile

import "time"

// EventKind is the canonical event classification for a normalized row.
type EventKind string

const (
	KindKeyOn         EventKind = "key_on"
	KindKeyOff        EventKind = "key_off"
	KindActivityStart EventKind = "activity_start"
	KindActivityEnd   EventKind = "activity_end"
	KindGeneric       EventKind = "generic"
)

// IsOn reports whether the kind marks the beginning of work.
func (k EventKind) IsOn() bool {
	return k == KindKeyOn || k == KindActivityStart
}

// IsOff reports whether the kind marks the end of work.
func (k EventKind) IsOff() bool {
	return k == KindKeyOff || k == KindActivityEnd
}

// Event is the canonical shape produced by the normalizer. DriverKey is a
// best-effort identity (explicit driver column, falling back to the asset
// column), so DriverKey and Kind are never both empty for an emitted event.
type Event struct {
	DriverKey string
	AssetKey  string
	Kind      EventKind
	// Date is "2006-01-02", or empty when the source value carried a clock
	// only and the date is supplied externally by the run.
	Date      string
	Clock     Clock
	HasClock  bool
	RawTime   string // original cell text; kept when the clock failed to parse
	Location  string
	Amount    float64
	HasAmount bool
	// Provenance. Excluded from content hashing.
	Source string
	Row    int
}

// DaySummary is the reduced per-driver, per-date view of all events.
// Immutable after aggregation.
type DaySummary struct {
	DriverKey     string   `json:"driver_key"`
	Date          string   `json:"date"`
	FirstOn       *Clock   `json:"first_on,omitempty"`
	LastOff       *Clock   `json:"last_off,omitempty"`
	FirstOnRaw    string   `json:"first_on_raw,omitempty"` // unparseable start value, when one existed
	AssetIDs      []string `json:"asset_ids"`
	Locations     []string `json:"locations"`
	ActivityCount int      `json:"activity_count"`
}

// Status is the primary attendance label for a driver day.
type Status string

const (
	StatusOnTime   Status = "on_time"
	StatusLate     Status = "late"
	StatusEarlyEnd Status = "early_end"
	StatusNotOnJob Status = "not_on_job"
	StatusUnknown  Status = "unknown"
)

// ClassificationResult carries the primary status plus both raw deviations so
// reporting can cross-reference a day that was late and ended early without
// re-deriving anything.
type ClassificationResult struct {
	Status           Status `json:"status"`
	DeviationMinutes int    `json:"deviation_minutes"`
	Reason           string `json:"reason"`
	LateMinutes      int    `json:"late_minutes,omitempty"`
	EarlyEndMinutes  int    `json:"early_end_minutes,omitempty"`
}

// ProcessedFile records a source file that was fully ingested, keyed by
// path+digest so an unchanged file is never ingested twice.
type ProcessedFile struct {
	ID          uint   `gorm:"primaryKey"`
	Path        string `gorm:"uniqueIndex:uniq_path_sha;size:1024"`
	SHA256      string `gorm:"uniqueIndex:uniq_path_sha;size:64"`
	SizeBytes   int64
	ModUnixNano int64
	RunID       string    `gorm:"index;size:36"`
	ProcessedAt time.Time `gorm:"index"`
	LastError   string    `gorm:"type:text"`
}

// AdmittedHash persists the dedup set per target date, making re-runs of the
// same day idempotent.
type AdmittedHash struct {
	ID        uint   `gorm:"primaryKey"`
	Date      string `gorm:"uniqueIndex:uniq_date_hash;size:10"`
	Hash      string `gorm:"uniqueIndex:uniq_date_hash;size:64"`
	RunID     string `gorm:"index;size:36"`
	CreatedAt time.Time
}

// RejectedRecord is the audit row for a record excluded from aggregation.
// Rejection is a normal outcome, not a failure.
type RejectedRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36"`
	Date       string `gorm:"index;size:10"`
	SourceFile string `gorm:"size:1024"`
	RowIndex   int
	DriverKey  string `gorm:"size:255"`
	AssetKey   string `gorm:"size:255"`
	Reason     string `gorm:"index;size:32"` // exact-hash, fuzzy-match, missing-identity
	Hash       string `gorm:"size:64"`
	CreatedAt  time.Time
}

// RunRecord is one pipeline invocation with its stats and serialized report.
type RunRecord struct {
	ID              uint   `gorm:"primaryKey"`
	RunID           string `gorm:"uniqueIndex;size:36"`
	Date            string `gorm:"index;size:10"`
	StartedAt       time.Time
	FinishedAt      time.Time
	FilesIngested   int
	RowsRead        int
	RowsDropped     int
	EventsAdmitted  int
	DuplicatesExact int
	DuplicatesFuzzy int
	ParseFailures   int
	ReportJSON      string `gorm:"type:text"`
	LastError       string `gorm:"type:text"`
}
