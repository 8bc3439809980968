package reconcile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// InputFileConfig is one input glob with an optional error directory for
// quarantining files that fail to load.
type InputFileConfig struct {
	Glob     string `yaml:"glob"`
	Category string `yaml:"category"`
	ErrorDir string `yaml:"error_dir"`
}

// InputsConfig accepts either:
//  1. mapping form (preferred):
//     inputs:
//       activity: /exports/activity/*.csv
//       driving:  { glob: /exports/history/*.xlsx, error_dir: /exports/bad }
//  2. list form:
//     inputs:
//       - glob: /exports/activity/*.csv
//         category: activity
type InputsConfig struct {
	Items []InputFileConfig
}

func (f *InputsConfig) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.MappingNode:
		items := make([]InputFileConfig, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := value.Content[i]
			v := value.Content[i+1]
			category := strings.TrimSpace(k.Value)
			if category == "" {
				continue
			}
			switch v.Kind {
			case yaml.ScalarNode:
				glob := strings.TrimSpace(v.Value)
				if glob == "" {
					continue
				}
				items = append(items, InputFileConfig{Glob: glob, Category: category})
			case yaml.MappingNode:
				var tmp struct {
					Glob     string `yaml:"glob"`
					ErrorDir string `yaml:"error_dir"`
				}
				if err := v.Decode(&tmp); err != nil {
					return err
				}
				if strings.TrimSpace(tmp.Glob) == "" {
					continue
				}
				items = append(items, InputFileConfig{
					Glob:     strings.TrimSpace(tmp.Glob),
					Category: category,
					ErrorDir: strings.TrimSpace(tmp.ErrorDir),
				})
			default:
				continue
			}
		}
		f.Items = items
		return nil
	case yaml.SequenceNode:
		var items []InputFileConfig
		if err := value.Decode(&items); err != nil {
			return err
		}
		f.Items = items
		return nil
	default:
		return nil
	}
}

// ScheduleConfig is the YAML form of a Schedule; clocks are time strings in
// any format the time parser accepts.
type ScheduleConfig struct {
	Start        string `yaml:"start"`
	End          string `yaml:"end"`
	GraceMinutes int    `yaml:"grace_minutes"`
}

// Schedule parses the configured clocks, filling defaults for blank fields.
func (c ScheduleConfig) Schedule() (Schedule, error) {
	s := DefaultSchedule()
	if strings.TrimSpace(c.Start) != "" {
		clk, err := ParseClock(c.Start)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule start: %w", err)
		}
		s.Start = clk
	}
	if strings.TrimSpace(c.End) != "" {
		clk, err := ParseClock(c.End)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule end: %w", err)
		}
		s.End = clk
	}
	if c.GraceMinutes > 0 {
		s.GraceMinutes = c.GraceMinutes
	}
	return s, nil
}

// KeywordConfig overrides the column-discovery keyword table. Empty lists
// keep the defaults for that field.
type KeywordConfig struct {
	Driver    []string `yaml:"driver"`
	Asset     []string `yaml:"asset"`
	EventType []string `yaml:"event_type"`
	Date      []string `yaml:"date"`
	Time      []string `yaml:"time"`
	Location  []string `yaml:"location"`
	Amount    []string `yaml:"amount"`
}

// Table merges the overrides over the default keyword table.
func (k *KeywordConfig) Table() KeywordTable {
	t := DefaultKeywords()
	if k == nil {
		return t
	}
	if len(k.Driver) > 0 {
		t.Driver = k.Driver
	}
	if len(k.Asset) > 0 {
		t.Asset = k.Asset
	}
	if len(k.EventType) > 0 {
		t.EventType = k.EventType
	}
	if len(k.Date) > 0 {
		t.Date = k.Date
	}
	if len(k.Time) > 0 {
		t.Time = k.Time
	}
	if len(k.Location) > 0 {
		t.Location = k.Location
	}
	if len(k.Amount) > 0 {
		t.Amount = k.Amount
	}
	return t
}

// FileConfig is the top-level YAML structure.
type FileConfig struct {
	DB        string `yaml:"db"`
	ReportDir string `yaml:"report_dir"`
	Job       string `yaml:"job"`
	Debug     bool   `yaml:"debug"`

	Inputs InputsConfig `yaml:"inputs"`

	// Run-level default schedule plus per-site overrides, keyed by site code
	// matched against location text.
	Schedule      ScheduleConfig            `yaml:"schedule"`
	SiteSchedules map[string]ScheduleConfig `yaml:"site_schedules"`

	Keywords *KeywordConfig `yaml:"keywords"`

	// Expected drivers; those with no events on the target date count toward
	// the report's no_data_count.
	Roster []string `yaml:"roster"`

	HashHexLen int `yaml:"hash_hex_len"`

	// Optional run-heartbeat forwarding.
	SyslogAddr string `yaml:"syslog_addr"`
	Service    string `yaml:"service"`

	// Fixed labels emitted in the heartbeat structured-data.
	FixedLabels map[string]string `yaml:"fixed_labels"`
}

// ScheduleBook builds the resolved schedule book from the config.
func (c *FileConfig) ScheduleBook() (ScheduleBook, error) {
	book := ScheduleBook{Sites: make(map[string]Schedule)}
	def, err := c.Schedule.Schedule()
	if err != nil {
		return ScheduleBook{}, err
	}
	book.Default = def
	for code, sc := range c.SiteSchedules {
		s, err := sc.Schedule()
		if err != nil {
			return ScheduleBook{}, fmt.Errorf("site %s: %w", code, err)
		}
		book.Sites[strings.ToUpper(strings.TrimSpace(code))] = s
	}
	return book, nil
}

// LoadConfig reads and parses the YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
