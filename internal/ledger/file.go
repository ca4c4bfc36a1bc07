package ledger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// fileLedger keeps fired keys in insertion order and rewrites its backing
// JSON file atomically (write temp, then rename) after every record, so a
// crash mid-write never corrupts the previous state.
type fileLedger struct {
	log logx.Logger
	cfg Config

	mu      sync.Mutex
	entries []fileEntry
	index   map[string]struct{}
}

type fileEntry struct {
	Key     string    `json:"key"`
	FiredAt time.Time `json:"fired_at"`
}

type fileFormat struct {
	Entries []fileEntry `json:"entries"`
}

func openFile(cfg Config, log logx.Logger) (Ledger, error) {
	l := &fileLedger{log: log, cfg: cfg, index: map[string]struct{}{}}
	l.load()
	return l, nil
}

// load reads the backing file, accepting both the current format and the
// legacy flat map ({"<key>": true}) the previous deployment wrote. Missing or
// unreadable files start the ledger empty. Entries older than the retention
// window (by the timestamp embedded in the key) are pruned here.
func (l *fileLedger) load() {
	b, err := os.ReadFile(l.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("ledger unreadable; starting empty", logx.String("path", l.cfg.Path), logx.Err(err))
		}
		return
	}

	var ff fileFormat
	if err := json.Unmarshal(b, &ff); err != nil || ff.Entries == nil {
		var legacy map[string]bool
		if err := json.Unmarshal(b, &legacy); err != nil {
			l.log.Warn("ledger corrupt; starting empty", logx.String("path", l.cfg.Path), logx.Err(err))
			return
		}
		for key := range legacy {
			at, _ := keyTime(key)
			ff.Entries = append(ff.Entries, fileEntry{Key: key, FiredAt: at})
		}
	}

	cutoff := time.Now().Add(-l.cfg.Retention)
	kept := ff.Entries[:0]
	for _, e := range ff.Entries {
		if at, ok := keyTime(e.Key); ok && at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	for _, e := range l.entries {
		l.index[e.Key] = struct{}{}
	}
	if dropped := len(ff.Entries) - len(kept); dropped > 0 {
		l.log.Info("pruned expired ledger entries", logx.Int("dropped", dropped))
	}
}

func (l *fileLedger) Seen(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[key]
	return ok
}

func (l *fileLedger) Record(key string) error {
	if key == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[key]; !ok {
		l.entries = append(l.entries, fileEntry{Key: key, FiredAt: time.Now()})
		l.index[key] = struct{}{}
	}

	// Oldest-first eviction when over the cap.
	if over := len(l.entries) - l.cfg.MaxEntries; over > 0 {
		for _, e := range l.entries[:over] {
			delete(l.index, e.Key)
		}
		l.entries = append([]fileEntry(nil), l.entries[over:]...)
		l.log.Info("ledger capped", logx.Int("evicted", over), logx.Int("max", l.cfg.MaxEntries))
	}

	return l.persistLocked()
}

func (l *fileLedger) persistLocked() error {
	b, err := json.MarshalIndent(fileFormat{Entries: l.entries}, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.cfg.Path)
}

func (l *fileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *fileLedger) Close() error { return nil }
