package reconcile

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DriverDay is one classified driver day, the unit the report aggregates.
type DriverDay struct {
	DriverKey string               `json:"driver_key"`
	JobSite   string               `json:"job_site"`
	Summary   DaySummary           `json:"summary"`
	Result    ClassificationResult `json:"classification"`
}

// ReportSummary holds the population counts and the dedup/drop audit totals.
type ReportSummary struct {
	OnTimeCount        int     `json:"on_time_count"`
	LateCount          int     `json:"late_count"`
	EarlyEndCount      int     `json:"early_end_count"`
	NotOnJobCount      int     `json:"not_on_job_count"`
	UnknownCount       int     `json:"unknown_count"`
	NoDataCount        int     `json:"no_data_count"`
	AvgMinutesLate     float64 `json:"avg_minutes_late"`
	AvgMinutesEarlyEnd float64 `json:"avg_minutes_early_end"`
	DuplicatesExact    int     `json:"duplicates_exact"`
	DuplicatesFuzzy    int     `json:"duplicates_fuzzy"`
	RowsDropped        int     `json:"rows_dropped"`
}

// SiteRollup aggregates one job site's driver days.
type SiteRollup struct {
	DriverCount   int `json:"driver_count"`
	OnTimeCount   int `json:"on_time_count"`
	LateCount     int `json:"late_count"`
	EarlyEndCount int `json:"early_end_count"`
	NotOnJobCount int `json:"not_on_job_count"`
	UnknownCount  int `json:"unknown_count"`
}

// Report is the aggregate over a driver population for one date. Immutable
// after generation and safe to hand to any serializer.
type Report struct {
	RunID       string                `json:"run_id"`
	Date        string                `json:"date"`
	GeneratedAt time.Time             `json:"generated_at"`
	Summary     ReportSummary         `json:"summary"`
	Drivers     []DriverDay           `json:"drivers"`
	Exceptions  []DriverDay           `json:"exceptions"`
	JobSites    map[string]SiteRollup `json:"job_sites"`
}

// ReportOptions carries the audit counters and the optional expected roster.
// Roster drivers with no events contribute to NoDataCount only; they never
// appear in the driver list.
type ReportOptions struct {
	RunID           string
	DuplicatesExact int
	DuplicatesFuzzy int
	RowsDropped     int
	Roster          []string
}

// GenerateReport rolls classified driver days into a Report. Deterministic
// for a fixed input apart from the generated_at provenance stamp; drivers are
// sorted by key, an empty input yields a zeroed report rather than an error.
func GenerateReport(days []DriverDay, date string, opts ReportOptions) *Report {
	r := &Report{
		RunID:       opts.RunID,
		Date:        date,
		GeneratedAt: time.Now().UTC(),
		JobSites:    make(map[string]SiteRollup),
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	r.Summary.DuplicatesExact = opts.DuplicatesExact
	r.Summary.DuplicatesFuzzy = opts.DuplicatesFuzzy
	r.Summary.RowsDropped = opts.RowsDropped

	sorted := make([]DriverDay, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DriverKey < sorted[j].DriverKey })

	var lateSum, earlySum int
	for _, d := range sorted {
		if d.JobSite == "" {
			d.JobSite = jobSiteOf(d.Summary)
		}
		r.Drivers = append(r.Drivers, d)

		roll := r.JobSites[d.JobSite]
		roll.DriverCount++
		switch d.Result.Status {
		case StatusOnTime:
			r.Summary.OnTimeCount++
			roll.OnTimeCount++
		case StatusLate:
			r.Summary.LateCount++
			roll.LateCount++
			lateSum += d.Result.LateMinutes
		case StatusEarlyEnd:
			r.Summary.EarlyEndCount++
			roll.EarlyEndCount++
			earlySum += d.Result.EarlyEndMinutes
		case StatusNotOnJob:
			r.Summary.NotOnJobCount++
			roll.NotOnJobCount++
		case StatusUnknown:
			r.Summary.UnknownCount++
			roll.UnknownCount++
		}
		r.JobSites[d.JobSite] = roll

		if d.Result.Status != StatusOnTime {
			r.Exceptions = append(r.Exceptions, d)
		}
	}

	if r.Summary.LateCount > 0 {
		r.Summary.AvgMinutesLate = float64(lateSum) / float64(r.Summary.LateCount)
	}
	if r.Summary.EarlyEndCount > 0 {
		r.Summary.AvgMinutesEarlyEnd = float64(earlySum) / float64(r.Summary.EarlyEndCount)
	}

	if len(opts.Roster) > 0 {
		present := make(map[string]struct{}, len(sorted))
		for _, d := range sorted {
			present[d.DriverKey] = struct{}{}
		}
		for _, driver := range opts.Roster {
			if _, ok := present[normalizeKey(driver)]; !ok {
				r.Summary.NoDataCount++
			}
		}
	}
	return r
}

// jobSiteOf derives the rollup key from a day's locations: first of the
// sorted set, "Unknown" when empty.
func jobSiteOf(sum DaySummary) string {
	if len(sum.Locations) == 0 {
		return "Unknown"
	}
	return sum.Locations[0]
}

// Encode serializes the report to indented JSON.
func (r *Report) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DecodeReport restores a serialized report. Round-trips preserve counts and
// exception lists exactly.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
