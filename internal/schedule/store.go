package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// QueueDay is one queue's entry in a persisted schedule day.
type QueueDay struct {
	Comment string
	Channel int64
	Periods []Interval
}

// Day maps queue ids to their outage intervals for one calendar day.
type Day map[string]QueueDay

// PostLink binds a channel to the public post holding that day's schedule table.
type PostLink struct {
	ChannelID int64  `json:"channel_id"`
	PostLink  string `json:"post_link"`
}

// Wire form of a queue entry, shared with the ingest writer.
type queueDayJSON struct {
	Comment   string     `json:"_comment,omitempty"`
	ChannelID int64      `json:"channel_id"`
	Periods   [][]string `json:"periods"`
}

// LoadDayFile reads a schedule day. A missing file is an empty day; a corrupt
// file is logged and also treated as empty, per the degrade-don't-crash rule.
// Malformed period pairs are skipped individually.
func LoadDayFile(path string, log logx.Logger) Day {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("schedule file unreadable", logx.String("path", path), logx.Err(err))
		}
		return Day{}
	}
	var raw map[string]queueDayJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		log.Error("schedule file corrupt; treating as empty", logx.String("path", path), logx.Err(err))
		return Day{}
	}

	day := make(Day, len(raw))
	for queue, entry := range raw {
		var ivs []Interval
		for _, pair := range entry.Periods {
			if len(pair) != 2 {
				log.Warn("skipping malformed period", logx.String("queue", queue), logx.Any("period", pair))
				continue
			}
			iv, err := parsePeriodPair(pair[0], pair[1])
			if err != nil {
				log.Warn("skipping malformed period", logx.String("queue", queue), logx.Err(err))
				continue
			}
			ivs = append(ivs, iv)
		}
		day[queue] = QueueDay{Comment: entry.Comment, Channel: entry.ChannelID, Periods: ivs}
	}
	return day
}

func parsePeriodPair(startRaw, endRaw string) (Interval, error) {
	start, err := ParseClock(startRaw)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(endRaw)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(start, end)
}

// WriteDayFile persists a day atomically (write temp, then rename).
func WriteDayFile(path string, day Day) error {
	raw := make(map[string]queueDayJSON, len(day))
	for queue, entry := range day {
		periods := make([][]string, 0, len(entry.Periods))
		for _, iv := range entry.Periods {
			periods = append(periods, []string{iv.Start.String(), iv.End.String()})
		}
		raw[queue] = queueDayJSON{Comment: entry.Comment, ChannelID: entry.Channel, Periods: periods}
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadPostLinks(path string, log logx.Logger) []PostLink {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("post links unreadable", logx.String("path", path), logx.Err(err))
		}
		return nil
	}
	var links []PostLink
	if err := json.Unmarshal(b, &links); err != nil {
		log.Error("post links corrupt; ignoring", logx.String("path", path), logx.Err(err))
		return nil
	}
	return links
}

// fileFingerprint returns an opaque change token for a backing file.
// Missing files get a distinct stable token so absent -> present counts
// as a change and vice versa.
func fileFingerprint(path string) string {
	st, err := os.Stat(path)
	if err != nil {
		return "absent"
	}
	return fmt.Sprintf("%d:%d", st.ModTime().UnixNano(), st.Size())
}

// StorePaths names the backing files of one Store.
type StorePaths struct {
	Today             string
	Tomorrow          string
	PostLinksToday    string
	PostLinksTomorrow string
}

// Store holds the two live schedule days plus their backing-source
// fingerprints. Load is idempotent: with unchanged fingerprints it re-reads
// nothing and reports no change. After initialization "today" is never nil —
// an absent or unreadable file yields an empty Day.
type Store struct {
	log   logx.Logger
	paths StorePaths

	mu          sync.Mutex
	today       Day
	tomorrow    Day
	todayFP     string
	tomorrowFP  string
	links       []PostLink
	linksFP     string
	initialized bool
}

func NewStore(paths StorePaths, log logx.Logger) *Store {
	return &Store{log: log, paths: paths, today: Day{}, tomorrow: Day{}}
}

// Load re-reads any backing source whose fingerprint moved and reports whether
// a schedule day actually changed. Post-link changes refresh the cache but do
// not count as a schedule change (they are consulted at plan time only).
func (s *Store) Load() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false

	if fp := fileFingerprint(s.paths.Today); fp != s.todayFP || !s.initialized {
		s.todayFP = fp
		s.today = LoadDayFile(s.paths.Today, s.log)
		s.log.Info("today schedule reloaded", logx.String("path", s.paths.Today), logx.Int("queues", len(s.today)))
		changed = true
	}

	if fp := fileFingerprint(s.paths.Tomorrow); fp != s.tomorrowFP || !s.initialized {
		s.tomorrowFP = fp
		s.tomorrow = LoadDayFile(s.paths.Tomorrow, s.log)
		s.log.Info("tomorrow schedule reloaded", logx.String("path", s.paths.Tomorrow), logx.Int("queues", len(s.tomorrow)))
		changed = true
	}

	if fp := fileFingerprint(s.paths.PostLinksToday); fp != s.linksFP || !s.initialized {
		s.linksFP = fp
		s.links = loadPostLinks(s.paths.PostLinksToday, s.log)
	}

	s.initialized = true
	return changed
}

func (s *Store) Today() Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.today
}

func (s *Store) Tomorrow() Day {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tomorrow
}

// PostLink returns today's schedule post link for a channel, or "".
func (s *Store) PostLink(channel int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ChannelID == channel {
			return l.PostLink
		}
	}
	return ""
}

// Rollover makes tomorrow's backing files today's: the schedule file is moved
// into place (today becomes empty when there is no tomorrow file), and the
// post-links file follows the same swap when present. Cached state is
// invalidated so the next Load observes the change.
func (s *Store) Rollover() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.paths.Tomorrow); err == nil {
		if err := os.Rename(s.paths.Tomorrow, s.paths.Today); err != nil {
			s.log.Error("schedule rollover rename failed", logx.Err(err))
		} else {
			s.log.Info("schedule rolled over", logx.String("from", s.paths.Tomorrow), logx.String("to", s.paths.Today))
		}
	} else {
		// No schedule for the new day: today must become empty, not replay
		// yesterday's intervals.
		if err := os.Remove(s.paths.Today); err != nil && !os.IsNotExist(err) {
			s.log.Error("schedule rollover cleanup failed", logx.Err(err))
		}
		s.log.Warn("no tomorrow schedule at rollover; today is now empty")
	}

	if _, err := os.Stat(s.paths.PostLinksTomorrow); err == nil {
		if err := os.Rename(s.paths.PostLinksTomorrow, s.paths.PostLinksToday); err != nil {
			s.log.Error("post links rollover rename failed", logx.Err(err))
		}
	} else {
		s.log.Warn("no tomorrow post links at rollover; keeping previous")
	}

	// Force re-read on next Load.
	s.todayFP = ""
	s.tomorrowFP = ""
	s.linksFP = ""
}
