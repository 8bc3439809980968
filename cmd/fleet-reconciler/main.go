package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-reconciler/reconcile"
)

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var configPath string
	var inputs multiFlag
	var dbPath string
	var reportDir string
	var date string
	var jobLabel string
	var debug bool
	var schedStart string
	var schedEnd string
	var grace int
	var hashHexLen int
	var syslogAddr string
	var serviceLabel string
	var timeout time.Duration
	var once bool
	var metricsAddr string

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.Var(&inputs, "input", "Input spec 'category=glob'. Can be repeated.")
	flag.StringVar(&dbPath, "db", "reconciler.db", "SQLite audit database path.")
	flag.StringVar(&reportDir, "report-dir", "", "Directory for generated report JSON files.")
	flag.StringVar(&date, "date", "", "Target date (2006-01-02). Default: today.")
	flag.StringVar(&jobLabel, "job", "", "Heartbeat label 'job'. Prefer config file.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.StringVar(&schedStart, "start", "", "Default scheduled start time (e.g. 07:00).")
	flag.StringVar(&schedEnd, "end", "", "Default scheduled end time (e.g. 17:30).")
	flag.IntVar(&grace, "grace", 0, "Default grace window in minutes.")
	flag.IntVar(&hashHexLen, "hash-hex-len", reconcile.DefaultHashHexLen, "Content hash hex length.")
	flag.StringVar(&syslogAddr, "syslog-addr", "", "Heartbeat syslog receiver address (tcp).")
	flag.StringVar(&serviceLabel, "service", "fleet", "Heartbeat structured-data service label.")
	flag.DurationVar(&timeout, "timeout", 0, "Overall timeout for one run (e.g. 30s, 2m).")
	flag.BoolVar(&once, "once", true, "Run once and exit (default true for crontab).")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address in watch mode.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	fileCfg := &reconcile.FileConfig{}
	if configPath != "" {
		cfg, err := reconcile.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		fileCfg = cfg
	}

	// Merge config + CLI overrides.
	finalDB := fileCfg.DB
	if finalDB == "" || visited["db"] {
		finalDB = dbPath
	}
	finalReportDir := fileCfg.ReportDir
	if visited["report-dir"] {
		finalReportDir = reportDir
	}
	finalJob := fileCfg.Job
	if visited["job"] {
		finalJob = jobLabel
	}
	finalDebug := fileCfg.Debug
	if visited["debug"] {
		finalDebug = debug
	}
	finalHashLen := fileCfg.HashHexLen
	if finalHashLen == 0 || visited["hash-hex-len"] {
		finalHashLen = hashHexLen
	}
	finalSyslog := fileCfg.SyslogAddr
	if visited["syslog-addr"] {
		finalSyslog = syslogAddr
	}
	finalService := fileCfg.Service
	if finalService == "" || visited["service"] {
		finalService = serviceLabel
	}

	if visited["start"] {
		fileCfg.Schedule.Start = schedStart
	}
	if visited["end"] {
		fileCfg.Schedule.End = schedEnd
	}
	if visited["grace"] {
		fileCfg.Schedule.GraceMinutes = grace
	}
	book, err := fileCfg.ScheduleBook()
	if err != nil {
		log.Fatalf("build schedules: %v", err)
	}

	finalInputs := make([]reconcile.InputSpec, 0, len(fileCfg.Inputs.Items))
	for _, in := range fileCfg.Inputs.Items {
		finalInputs = append(finalInputs, reconcile.InputSpec{Glob: in.Glob, Category: in.Category, ErrorDir: in.ErrorDir})
	}
	if visited["input"] {
		finalInputs = finalInputs[:0]
		for _, spec := range inputs {
			category, glob, ok := strings.Cut(spec, "=")
			if !ok {
				glob, category = category, ""
			}
			finalInputs = append(finalInputs, reconcile.InputSpec{Glob: glob, Category: category})
		}
	}
	if len(finalInputs) == 0 {
		fmt.Fprintln(os.Stderr, "missing inputs (use config inputs: or --input category=glob)")
		os.Exit(2)
	}

	runner, err := reconcile.NewRunner(reconcile.RunnerConfig{
		DBPath:       finalDB,
		ReportDir:    finalReportDir,
		JobLabel:     finalJob,
		Debug:        finalDebug,
		Inputs:       finalInputs,
		TargetDate:   date,
		Schedules:    book,
		Keywords:     fileCfg.Keywords.Table(),
		Roster:       fileCfg.Roster,
		HashHexLen:   finalHashLen,
		Timeout:      timeout,
		SyslogAddr:   finalSyslog,
		ServiceLabel: finalService,
		FixedLabels:  fileCfg.FixedLabels,
	})
	if err != nil {
		log.Fatalf("init runner: %v", err)
	}
	defer runner.Close()

	if once {
		report, err := runner.RunOnce()
		if errors.Is(err, reconcile.ErrNoData) {
			log.Printf("run complete: no data available for %s", report.Date)
			return
		}
		if err != nil {
			log.Fatalf("run once: %v", err)
		}
		log.Printf("run complete: date=%s drivers=%d exceptions=%d", report.Date, len(report.Drivers), len(report.Exceptions))
		return
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	stop := make(chan struct{})
	if err := runner.Watch(stop); err != nil {
		log.Fatalf("watch: %v", err)
	}
}
