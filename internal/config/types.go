package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Timezone is the IANA zone all wall-clock schedule times are anchored to.
	Timezone string `json:"timezone,omitempty"`

	Schedule ScheduleConfig `json:"schedule"`
	Planner  PlannerConfig  `json:"planner,omitempty"`
	Ledger   LedgerConfig   `json:"ledger,omitempty"`
	Notifier NotifierConfig `json:"notifier,omitempty"`

	// Channels binds queue ids ("3.1") to the Telegram channel that receives
	// that queue's notifications. Used by post ingest; the schedule files carry
	// their own binding once written.
	Channels map[string]int64 `json:"channels,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig names the backing files of the two live schedule days and
// their companions. Relative paths resolve against the working directory.
type ScheduleConfig struct {
	TodayFile    string `json:"today_file,omitempty"`
	TomorrowFile string `json:"tomorrow_file,omitempty"`

	PostLinksToday    string `json:"post_links_today,omitempty"`
	PostLinksTomorrow string `json:"post_links_tomorrow,omitempty"`

	MuteFile string `json:"mute_file,omitempty"`

	// InboxDir, when set, is scanned once a minute for dropped .txt posts to
	// convert into schedule files.
	InboxDir string `json:"inbox_dir,omitempty"`
}

type PlannerConfig struct {
	// PreWarn is how long before an off-start the warning message fires.
	// Go duration string; default "5m".
	PreWarn string `json:"pre_warn,omitempty"`
}

// LedgerConfig controls the fired-event dedup ledger.
//
// Driver values:
//   - "file" (default): JSON file rewritten atomically after every record
//   - "sqlite": SQLite database file
type LedgerConfig struct {
	Driver     string `json:"driver,omitempty"`
	Path       string `json:"path,omitempty"`
	MaxEntries int    `json:"max_entries,omitempty"`
	// Retention is a Go duration string; entries older than this are pruned
	// on load. Default "240h" (10 days).
	Retention string `json:"retention,omitempty"`
}

type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// applyDefaults fills zero values with the defaults the original deployment used.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "Europe/Kyiv"
	}
	if c.Schedule.TodayFile == "" {
		c.Schedule.TodayFile = "schedule.json"
	}
	if c.Schedule.TomorrowFile == "" {
		c.Schedule.TomorrowFile = "schedule_tomorrow.json"
	}
	if c.Schedule.PostLinksToday == "" {
		c.Schedule.PostLinksToday = "post_links_today.json"
	}
	if c.Schedule.PostLinksTomorrow == "" {
		c.Schedule.PostLinksTomorrow = "post_links_tomorrow.json"
	}
	if c.Schedule.MuteFile == "" {
		c.Schedule.MuteFile = "mute.json"
	}
	if c.Planner.PreWarn == "" {
		c.Planner.PreWarn = "5m"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "file"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "bot_state.json"
	}
	if c.Ledger.MaxEntries <= 0 {
		c.Ledger.MaxEntries = 1000
	}
	if c.Ledger.Retention == "" {
		c.Ledger.Retention = "240h"
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 3
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	return nil
}

func decodeStrict(jb []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}
