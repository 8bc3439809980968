package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoData reports a run whose sources yielded zero parseable events. The
// run still completes and writes an empty report; callers decide whether the
// condition is alarming.
var ErrNoData = errors.New("no data available")

// InputSpec is one input glob. Category is an audit label ("activity",
// "driving", ...); ErrorDir receives files that fail to load.
type InputSpec struct {
	Glob     string
	Category string
	ErrorDir string
}

type RunnerConfig struct {
	DBPath    string
	ReportDir string
	JobLabel  string
	Debug     bool
	Inputs    []InputSpec
	// TargetDate is "2006-01-02"; empty means today.
	TargetDate string
	Schedules  ScheduleBook
	Keywords   KeywordTable
	Roster     []string
	HashHexLen int
	Timeout    time.Duration
	// Optional heartbeat forwarding.
	SyslogAddr   string
	ServiceLabel string
	FixedLabels  map[string]string
}

// Runner executes the pipeline: load -> normalize -> dedup -> aggregate ->
// classify -> report, with the audit store tracking everything skipped or
// rejected along the way. One Runner serves one configuration; each RunOnce
// owns its own dedup session, so independent runs never share mutable state.
type Runner struct {
	cfg    RunnerConfig
	db     *gorm.DB
	syslog SyslogSender
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("DBPath is required")
	}
	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("at least one input is required")
	}
	if cfg.HashHexLen <= 0 {
		cfg.HashHexLen = DefaultHashHexLen
	}
	if cfg.ServiceLabel == "" {
		cfg.ServiceLabel = "fleet"
	}
	if (cfg.Schedules.Default == Schedule{}) {
		cfg.Schedules.Default = DefaultSchedule()
	}
	if len(cfg.Keywords.Driver) == 0 && len(cfg.Keywords.Asset) == 0 {
		cfg.Keywords = DefaultKeywords()
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg, db: db}
	if cfg.SyslogAddr != "" {
		r.syslog = NewSyslogClient(cfg.SyslogAddr)
	}
	return r, nil
}

func (r *Runner) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	r.db = nil
	return err
}

func (r *Runner) debugf(format string, args ...any) {
	if r == nil || !r.cfg.Debug {
		return
	}
	log.Printf(format, args...)
}

type runStats struct {
	FilesIngested    int
	FilesSkipped     int
	FilesQuarantined int
	RowsRead         int
	RowsDropped      int
	EventsNormalized int
	ParseFailures    int
}

// RunOnce executes one full pipeline pass for the target date and returns
// the generated report. Malformed files and rows never abort the batch; only
// a complete absence of parseable input surfaces as ErrNoData.
func (r *Runner) RunOnce() (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	date := r.cfg.TargetDate
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	deadline := time.Time{}
	if r.cfg.Timeout > 0 {
		deadline = start.Add(r.cfg.Timeout)
	}
	stats := &runStats{}
	r.debugf("run start: runID=%s date=%s inputs=%d", runID, date, len(r.cfg.Inputs))

	session := NewSession(r.cfg.HashHexLen)
	if seeded, err := loadAdmittedHashes(r.db, date); err != nil {
		return nil, fmt.Errorf("load admitted hashes: %w", err)
	} else if len(seeded) > 0 {
		session.Seed(seeded)
		r.debugf("seeded %d admitted hashes for %s", len(seeded), date)
	}

	items, err := r.expandInputs()
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if isDeadlineExceeded(deadline) {
			return nil, fmt.Errorf("timeout exceeded")
		}
		if err := r.ingestFile(it, runID, session, stats); err != nil {
			r.debugf("ingest failed path=%q err=%v", it.Path, err)
		}
	}

	events := session.Resolve()
	report := r.buildReport(runID, date, session, events, stats)

	if err := r.persistRun(runID, date, start, session, report, stats); err != nil {
		metricRunsCompleted.WithLabelValues("error").Inc()
		return report, err
	}
	if r.cfg.ReportDir != "" {
		if err := r.writeReportFile(report); err != nil {
			return report, err
		}
	}
	r.sendHeartbeat(runID, date, start, report, stats)

	metricRunDuration.Observe(time.Since(start).Seconds())
	r.debugf("run done: runID=%s files=%d rows=%d events=%d dupExact=%d dupFuzzy=%d elapsed=%s",
		runID, stats.FilesIngested, stats.RowsRead, stats.EventsNormalized,
		session.RejectCount(ReasonExactHash), session.RejectCount(ReasonFuzzy), time.Since(start))

	if stats.EventsNormalized == 0 {
		metricRunsCompleted.WithLabelValues("no_data").Inc()
		return report, ErrNoData
	}
	metricRunsCompleted.WithLabelValues("ok").Inc()
	return report, nil
}

type inputItem struct {
	Path     string
	Category string
	ErrorDir string
}

func (r *Runner) expandInputs() ([]inputItem, error) {
	seen := make(map[string]struct{})
	var out []inputItem
	for _, in := range r.cfg.Inputs {
		if strings.TrimSpace(in.Glob) == "" {
			continue
		}
		matches, err := filepath.Glob(in.Glob)
		if err != nil {
			return nil, fmt.Errorf("bad input glob %q: %w", in.Glob, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, inputItem{Path: m, Category: in.Category, ErrorDir: in.ErrorDir})
		}
	}
	return out, nil
}

func (r *Runner) ingestFile(it inputItem, runID string, session *Session, stats *runStats) error {
	info, err := os.Stat(it.Path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Size() <= 0 {
		return nil
	}

	content, err := os.ReadFile(it.Path)
	if err != nil {
		stats.FilesQuarantined += r.quarantine(it, runID, "", err)
		return err
	}
	sum := sha256.Sum256(content)
	shaHex := hex.EncodeToString(sum[:])

	already, err := r.isAlreadyProcessed(it.Path, shaHex)
	if err != nil {
		return err
	}
	if already {
		stats.FilesSkipped++
		r.debugf("skip already processed path=%q sha=%s", it.Path, shaHex)
		return nil
	}

	table, err := LoadTable(it.Path)
	if err != nil {
		r.debugf("load error path=%q err=%v", it.Path, err)
		stats.FilesQuarantined += r.quarantine(it, runID, shaHex, err)
		r.markProcessed(it.Path, shaHex, info, runID, err)
		return nil
	}

	norm := Normalizer{Keywords: r.cfg.Keywords}
	res := norm.Normalize(table)
	stats.RowsRead += res.RowsRead
	stats.RowsDropped += res.Dropped
	metricRowsRead.Add(float64(res.RowsRead))
	metricRowsDropped.Add(float64(res.Dropped))
	if res.Dropped > 0 {
		r.debugf("dropped %d of %d rows (no identity) path=%q category=%q",
			res.Dropped, res.RowsRead, it.Path, it.Category)
	}

	for _, ev := range res.Events {
		stats.EventsNormalized++
		metricEventsNormalized.Inc()
		if ev.RawTime != "" && !ev.HasClock {
			stats.ParseFailures++
			metricParseFailures.Inc()
		}
		if ok, _ := session.Admit(ev); !ok {
			metricDuplicatesRejected.WithLabelValues(ReasonExactHash).Inc()
		}
	}

	stats.FilesIngested++
	r.markProcessed(it.Path, shaHex, info, runID, nil)
	return nil
}

// quarantine moves a broken file aside when the input has an error dir.
// Returns 1 when a move happened, for the stats counter.
func (r *Runner) quarantine(it inputItem, runID string, sha string, cause error) int {
	if strings.TrimSpace(it.ErrorDir) == "" {
		return 0
	}
	dst, err := QuarantineFile(it.Path, it.ErrorDir)
	if err != nil {
		r.debugf("quarantine failed path=%q err=%v", it.Path, err)
		return 0
	}
	r.debugf("quarantined path=%q dst=%q cause=%v", it.Path, dst, cause)
	return 1
}

func (r *Runner) isAlreadyProcessed(path string, sha string) (bool, error) {
	var pf ProcessedFile
	err := r.db.Where("path = ? AND sha256 = ?", path, sha).First(&pf).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *Runner) markProcessed(path string, sha string, info fs.FileInfo, runID string, cause error) {
	pf := ProcessedFile{
		Path:        path,
		SHA256:      sha,
		SizeBytes:   info.Size(),
		ModUnixNano: info.ModTime().UnixNano(),
		RunID:       runID,
		ProcessedAt: time.Now().UTC(),
	}
	if cause != nil {
		pf.LastError = cause.Error()
	}
	if err := r.db.Create(&pf).Error; err != nil {
		r.debugf("mark processed failed path=%q err=%v", path, err)
	}
}

func (r *Runner) buildReport(runID string, date string, session *Session, events []Event, stats *runStats) *Report {
	summaries := Aggregate(events, date)
	drivers := make([]string, 0, len(summaries))
	for d := range summaries {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)

	days := make([]DriverDay, 0, len(drivers))
	for _, d := range drivers {
		sum := summaries[d]
		sched, site := r.cfg.Schedules.Resolve(sum.Locations)
		day := DriverDay{
			DriverKey: d,
			JobSite:   site,
			Summary:   sum,
			Result:    Classify(sum, sched),
		}
		if day.JobSite == "" {
			day.JobSite = jobSiteOf(sum)
		}
		days = append(days, day)
	}

	return GenerateReport(days, date, ReportOptions{
		RunID:           runID,
		DuplicatesExact: session.RejectCount(ReasonExactHash),
		DuplicatesFuzzy: session.RejectCount(ReasonFuzzy),
		RowsDropped:     stats.RowsDropped,
		Roster:          r.cfg.Roster,
	})
}

func (r *Runner) persistRun(runID string, date string, start time.Time, session *Session, report *Report, stats *runStats) error {
	for _, rej := range session.Rejects() {
		if rej.Reason == ReasonFuzzy {
			metricDuplicatesRejected.WithLabelValues(ReasonFuzzy).Inc()
		}
		row := RejectedRecord{
			RunID:      runID,
			Date:       date,
			SourceFile: rej.Event.Source,
			RowIndex:   rej.Event.Row,
			DriverKey:  rej.Event.DriverKey,
			AssetKey:   rej.Event.AssetKey,
			Reason:     rej.Reason,
			Hash:       rej.Hash,
		}
		if err := r.db.Create(&row).Error; err != nil {
			return fmt.Errorf("persist reject: %w", err)
		}
	}

	if err := saveAdmittedHashes(r.db, date, runID, session.Hashes()); err != nil {
		return fmt.Errorf("persist admitted hashes: %w", err)
	}

	encoded, err := report.Encode()
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	run := RunRecord{
		RunID:           runID,
		Date:            date,
		StartedAt:       start.UTC(),
		FinishedAt:      time.Now().UTC(),
		FilesIngested:   stats.FilesIngested,
		RowsRead:        stats.RowsRead,
		RowsDropped:     stats.RowsDropped,
		EventsAdmitted:  stats.EventsNormalized - session.RejectCount(ReasonExactHash) - session.RejectCount(ReasonFuzzy),
		DuplicatesExact: session.RejectCount(ReasonExactHash),
		DuplicatesFuzzy: session.RejectCount(ReasonFuzzy),
		ParseFailures:   stats.ParseFailures,
		ReportJSON:      string(encoded),
	}
	if stats.EventsNormalized == 0 {
		run.LastError = ErrNoData.Error()
	}
	if err := r.db.Create(&run).Error; err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	return nil
}

func (r *Runner) writeReportFile(report *Report) error {
	if err := os.MkdirAll(r.cfg.ReportDir, 0o755); err != nil {
		return err
	}
	encoded, err := report.Encode()
	if err != nil {
		return err
	}
	name := fmt.Sprintf("report_%s_%s.json", report.Date, shortID(report.RunID))
	path := filepath.Join(r.cfg.ReportDir, name)
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	r.debugf("report written path=%q", path)
	return nil
}

func (r *Runner) sendHeartbeat(runID string, date string, start time.Time, report *Report, stats *runStats) {
	if r.syslog == nil {
		return
	}
	structured := buildStructuredData("fleet", map[string]string{
		"job":     r.cfg.JobLabel,
		"service": r.cfg.ServiceLabel,
		"env":     r.cfg.FixedLabels["env"],
		"site":    r.cfg.FixedLabels["site"],
		"cluster": r.cfg.FixedLabels["cluster"],
		"run_id":  runID,
		"date":    date,
	})
	msg := fmt.Sprintf(`{"files_ingested":%d,"rows_read":%d,"rows_dropped":%d,"events":%d,"late":%d,"early_end":%d,"not_on_job":%d,"unknown":%d,"duration_ms":%d}`,
		stats.FilesIngested, stats.RowsRead, stats.RowsDropped, stats.EventsNormalized,
		report.Summary.LateCount, report.Summary.EarlyEndCount, report.Summary.NotOnJobCount,
		report.Summary.UnknownCount, time.Since(start).Milliseconds())
	if err := r.syslog.SendRFC5424Timeout("fleet-reconciler", structured, msg, 3*time.Second); err != nil {
		r.debugf("heartbeat send failed err=%v", err)
		return
	}

	for _, ex := range report.Exceptions {
		sd := buildStructuredData("fleet", map[string]string{
			"job":    r.cfg.JobLabel,
			"run_id": runID,
			"date":   date,
			"status": string(ex.Result.Status),
			"driver": ex.DriverKey,
		})
		line := fmt.Sprintf(`{"driver":%q,"job_site":%q,"reason":%q,"deviation_minutes":%d}`,
			ex.DriverKey, ex.JobSite, ex.Result.Reason, ex.Result.DeviationMinutes)
		if err := r.syslog.SendRFC5424Timeout("fleet-reconciler", sd, line, 3*time.Second); err != nil {
			r.debugf("exception send failed driver=%q err=%v", ex.DriverKey, err)
			return
		}
	}
}

// Watch re-runs the pipeline whenever a file lands in one of the input
// directories, debounced so a burst of exports triggers a single run. Blocks
// until stop closes.
func (r *Runner) Watch(stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("input watcher: %w", err)
	}
	defer w.Close()

	dirs := make(map[string]struct{})
	for _, in := range r.cfg.Inputs {
		d := filepath.Dir(in.Glob)
		if _, ok := dirs[d]; ok {
			continue
		}
		dirs[d] = struct{}{}
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	const debounce = 2 * time.Second
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			}
		case <-fire:
			if _, err := r.RunOnce(); err != nil && !errors.Is(err, ErrNoData) {
				log.Printf("watch run error: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.debugf("watcher error: %v", err)
		case <-stop:
			return nil
		}
	}
}

func isDeadlineExceeded(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
