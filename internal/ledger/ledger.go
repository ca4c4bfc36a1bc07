// Package ledger persists the set of fired notification keys so each
// (queue, kind, timestamp) fires at most once, across process restarts and
// across replans.
package ledger

import (
	"errors"
	"strings"
	"time"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// Ledger is the dedup ledger API. Record persists before returning.
type Ledger interface {
	Seen(key string) bool
	Record(key string) error
	Len() int
	Close() error
}

// Config configures the ledger backing store.
//
// Driver values:
//   - "file" (default): JSON file, atomically rewritten after every record
//   - "sqlite": SQLite database file
type Config struct {
	Driver     string
	Path       string
	MaxEntries int
	Retention  time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1000
	}
	if c.Retention <= 0 {
		c.Retention = 10 * 24 * time.Hour
	}
}

// Open initializes the configured ledger. A corrupted or missing backing file
// is never fatal: the ledger starts empty instead.
func Open(cfg Config, log logx.Logger) (Ledger, error) {
	cfg.withDefaults()
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("ledger path is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown ledger driver: " + cfg.Driver)
	}
}

// keyTimeLayout matches the timestamp plan.Event.Key embeds as its final two
// underscore-separated segments ("..._2026-01-15_21:00").
const keyTimeLayout = "2006-01-02_15:04"

// keyTime recovers the fire time embedded in a dedup key. Keys without a
// parsable timestamp return ok=false and are retained by pruning, matching
// the tolerant behavior of the original state cleanup.
func keyTime(key string) (time.Time, bool) {
	parts := strings.Split(key, "_")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	ts := parts[len(parts)-2] + "_" + parts[len(parts)-1]
	t, err := time.Parse(keyTimeLayout, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
