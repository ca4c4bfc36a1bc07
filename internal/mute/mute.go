// Package mute answers "is this channel muted right now", backed by a small
// JSON file that operators edit out-of-band. The file is re-read only when
// its fingerprint moves, so per-event checks cost a stat, not a parse.
package mute

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// List is the mute policy lookup. Zero channels are muted when the backing
// file is absent or unreadable.
type List struct {
	path string
	log  logx.Logger

	mu     sync.Mutex
	cache  map[int64]bool
	fp     string
	loaded bool
}

func New(path string, log logx.Logger) *List {
	return &List{path: path, log: log}
}

func (l *List) Muted(channel int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	fp := fingerprint(l.path)
	if fp == "absent" {
		return false
	}
	if !l.loaded || fp != l.fp {
		l.cache = l.read()
		l.fp = fp
		l.loaded = true
		l.log.Info("mute list reloaded", logx.Int("muted", len(l.cache)))
	}
	return l.cache[channel]
}

// read accepts both forms operators have used: an object keyed by channel id
// ({"-100123": true}) and a bare array of ids ([-100123, "-100456"]).
func (l *List) read() map[int64]bool {
	out := map[int64]bool{}
	b, err := os.ReadFile(l.path)
	if err != nil {
		l.log.Error("mute file unreadable; nothing muted", logx.Err(err))
		return out
	}

	var asMap map[string]bool
	if err := json.Unmarshal(b, &asMap); err == nil {
		for k, v := range asMap {
			if id, err := strconv.ParseInt(k, 10, 64); err == nil && v {
				out[id] = true
			}
		}
		return out
	}

	var asList []any
	if err := json.Unmarshal(b, &asList); err == nil {
		for _, v := range asList {
			switch x := v.(type) {
			case float64:
				out[int64(x)] = true
			case string:
				if id, err := strconv.ParseInt(x, 10, 64); err == nil {
					out[id] = true
				}
			}
		}
		return out
	}

	l.log.Error("mute file corrupt; nothing muted", logx.String("path", l.path))
	return out
}

func fingerprint(path string) string {
	st, err := os.Stat(path)
	if err != nil {
		return "absent"
	}
	return strconv.FormatInt(st.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(st.Size(), 10)
}
