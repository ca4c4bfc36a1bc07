package schedule

import (
	"regexp"
	"strings"
)

var (
	queueLineRe = regexp.MustCompile(`^(\d+\.\d+)\s+(.+)$`)
	// Hyphen, en-dash and em-dash all appear in real posts.
	periodTokenRe = regexp.MustCompile(`^\s*(\d{1,2}:\d{2})\s*[-–—]\s*(\d{1,2}:\d{2})\s*$`)
)

// Diag describes a token or line the parser had to skip.
type Diag struct {
	Queue  string
	Token  string
	Reason string
}

// Parse extracts per-queue outage intervals from free-form post text.
//
// Lines of the form "<g>.<s> HH:MM - HH:MM[, HH:MM - HH:MM ...]" are queue
// lines; everything else is ignored. Malformed tokens never abort a line:
// they are reported as diagnostics and the rest of the line is kept. Queues
// that end up with zero valid intervals are omitted from the result.
func Parse(text string) (map[string][]Interval, []Diag) {
	result := make(map[string][]Interval)
	var diags []Diag

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		m := queueLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		queue, rest := m[1], m[2]

		var intervals []Interval
		for _, token := range strings.Split(rest, ",") {
			if strings.TrimSpace(token) == "" {
				continue
			}
			iv, diag := parseToken(queue, token)
			if diag != nil {
				diags = append(diags, *diag)
				continue
			}
			intervals = append(intervals, iv)
		}
		if len(intervals) > 0 {
			result[queue] = intervals
		}
	}
	return result, diags
}

func parseToken(queue, token string) (Interval, *Diag) {
	m := periodTokenRe.FindStringSubmatch(token)
	if m == nil {
		return Interval{}, &Diag{Queue: queue, Token: strings.TrimSpace(token), Reason: "not a HH:MM - HH:MM token"}
	}
	start, err := ParseClock(m[1])
	if err != nil {
		return Interval{}, &Diag{Queue: queue, Token: strings.TrimSpace(token), Reason: err.Error()}
	}
	end, err := ParseClock(m[2])
	if err != nil {
		return Interval{}, &Diag{Queue: queue, Token: strings.TrimSpace(token), Reason: err.Error()}
	}
	iv, err := NewInterval(start, end)
	if err != nil {
		return Interval{}, &Diag{Queue: queue, Token: strings.TrimSpace(token), Reason: err.Error()}
	}
	return iv, nil
}
