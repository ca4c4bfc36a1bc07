// Package ingest turns raw schedule post text into the persisted schedule
// files the store watches. The text itself arrives from an external producer
// (the channel scraper or an operator) — this side only parses and files it.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suprun/ck-blackout-bot/internal/schedule"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

type Config struct {
	TodayFile    string
	TomorrowFile string
	// Channels binds queue ids to their notification channels; unknown queues
	// are written with channel 0 and skipped by the planner.
	Channels map[string]int64
}

type Converter struct {
	cfg Config
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Converter {
	return &Converter{cfg: cfg, log: log}
}

// ConvertPost parses one post and writes the matching schedule file. The
// returned path is empty when the post carries no date anchor or no schedule
// lines — that is not an error, most posts are neither.
func (c *Converter) ConvertPost(text string, now time.Time) (string, error) {
	date, ok := schedule.ExtractDate(text, now)
	if !ok {
		return "", nil
	}
	parsed, diags := schedule.Parse(text)
	for _, d := range diags {
		c.log.Warn("skipped schedule token",
			logx.String("queue", d.Queue), logx.String("token", d.Token), logx.String("reason", d.Reason))
	}
	if len(parsed) == 0 {
		return "", nil
	}

	day := make(schedule.Day, len(parsed))
	for queue, ivs := range parsed {
		day[queue] = schedule.QueueDay{
			Comment: fmt.Sprintf("Черга %s ⚡", queue),
			Channel: c.cfg.Channels[queue],
			Periods: ivs,
		}
	}

	path := c.targetFile(date, now)
	if err := schedule.WriteDayFile(path, day); err != nil {
		return "", err
	}
	c.log.Info("schedule file written",
		logx.String("path", path), logx.Int("queues", len(day)), logx.Time("date", date))
	return path, nil
}

// targetFile picks today's file, tomorrow's file, or a dated fallback
// ("schedule_DDMM.json") for posts anchored to any other day.
func (c *Converter) targetFile(date, now time.Time) string {
	y1, m1, d1 := date.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return c.cfg.TodayFile
	}
	y2, m2, d2 = now.AddDate(0, 0, 1).Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return c.cfg.TomorrowFile
	}
	return filepath.Join(filepath.Dir(c.cfg.TodayFile), "schedule_"+date.Format("0201")+".json")
}

// ScanInbox converts and removes any .txt post dropped into dir. Files that
// fail to convert stay in place for the operator to inspect.
func (c *Converter) ScanInbox(dir string, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Error("inbox unreadable", logx.String("dir", dir), logx.Err(err))
		}
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			c.log.Error("inbox read failed", logx.String("path", path), logx.Err(err))
			continue
		}
		written, err := c.ConvertPost(string(b), now)
		if err != nil {
			c.log.Error("inbox convert failed", logx.String("path", path), logx.Err(err))
			continue
		}
		if written == "" {
			c.log.Info("inbox post had no schedule; removing", logx.String("path", path))
		}
		if err := os.Remove(path); err != nil {
			c.log.Warn("inbox cleanup failed", logx.String("path", path), logx.Err(err))
		}
	}
}
