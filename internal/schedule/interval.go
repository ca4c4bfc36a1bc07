package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a wall-clock time of day in minutes from midnight. Once midnight
// rollover has been resolved an end Clock may exceed 24h: an interval written
// "23:00 - 01:00" carries End = 25h.
type Clock int

const dayMinutes = 24 * 60

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String formats the clock as HH:MM within a single day; 24:00 and beyond
// wrap, so a resolved midnight end renders back as "00:00".
func (c Clock) String() string {
	m := int(c) % dayMinutes
	if m < 0 {
		m += dayMinutes
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseClock parses "HH:MM" (or "H:MM"). Hour 24 is accepted only as the
// exact end-of-day "24:00".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time %q: hour 24 allows only 24:00", s)
	}
	return Clock(hour*60 + minute), nil
}

// Interval is a half-open outage span [Start, End). Invariant: End > Start;
// End beyond 24h means the span crosses midnight into the next day.
type Interval struct {
	Start Clock
	End   Clock
}

// NewInterval resolves the midnight semantics of a raw (start, end) pair:
//
//   - "24:00" was already normalized to end-of-day by ParseClock
//   - an end of "00:00" that is not after the start means next-day midnight
//   - an end not after the start whose hour is below the start's hour is a
//     midnight-crossing span, so the end moves to the next day
//
// Anything still not after the start has no midnight-crossing explanation
// and is rejected.
func NewInterval(start, end Clock) (Interval, error) {
	if end == 0 && end <= start {
		end = dayMinutes
	} else if end <= start && end.Hour() < start.Hour() {
		end += dayMinutes
	}
	if end <= start {
		return Interval{}, fmt.Errorf("empty interval %s - %s", start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// Minutes returns the interval duration in elapsed minutes.
func (iv Interval) Minutes() int { return int(iv.End - iv.Start) }

// CrossesMidnight reports whether the span runs into the next day.
func (iv Interval) CrossesMidnight() bool { return iv.End > dayMinutes }

// EndsAtMidnight reports whether the span ends exactly on a day boundary,
// which makes it a candidate for merging with tomorrow's first interval.
func (iv Interval) EndsAtMidnight() bool { return int(iv.End)%dayMinutes == 0 }
