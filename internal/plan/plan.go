// Package plan expands a day's outage intervals into the concrete, timezone
// anchored notification events the scheduler will fire: a pre-warning before
// each off-start, the off-start itself, and the on-end.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/suprun/ck-blackout-bot/internal/schedule"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

type Kind string

const (
	KindPre Kind = "pre"
	KindOff Kind = "off"
	KindOn  Kind = "on"
)

// Event is one scheduled notification. Events are ephemeral: recomputed on
// every replan and discarded on cancellation; only their dedup keys persist.
type Event struct {
	Queue     string
	Kind      Kind
	Channel   int64
	DayOffset int
	FireAt    time.Time
	Text      string
}

// Key is the dedup identity of this notification occurrence. It embeds the
// fire time rounded to the minute, so the same event re-planned after a
// restart maps to the same key.
func (e Event) Key() string {
	return fmt.Sprintf("%s_%s_%d_%s", e.Queue, e.Kind, e.DayOffset, e.FireAt.Format("2006-01-02_15:04"))
}

// Planner derives events from schedule days. It is pure: two calls with the
// same inputs and reference time yield the same (queue, kind, fire time) set.
type Planner struct {
	// PreWarn is the lead time of the warning message before an off-start.
	PreWarn time.Duration
	// PostLink, when set, resolves a channel to today's schedule post link
	// appended to off-start messages.
	PostLink func(channel int64) string
	Log      logx.Logger
}

// Plan expands one day. dayOffset anchors the day relative to now's date
// (0 = today, 1 = tomorrow). When planning today, tomorrow's day is consulted
// for the cross-midnight merge and for "next outage" context; planning
// tomorrow passes an empty next day.
//
// Events whose resolved end is already behind now are stale and dropped
// entirely. An off-start in the past (but still running) is kept; the
// scheduler fires it immediately.
func (p *Planner) Plan(day schedule.Day, dayOffset int, now time.Time, tomorrow schedule.Day) []Event {
	preWarn := p.PreWarn
	if preWarn <= 0 {
		preWarn = 5 * time.Minute
	}

	queues := make([]string, 0, len(day))
	for q := range day {
		queues = append(queues, q)
	}
	sort.Strings(queues)

	var events []Event
	for _, queue := range queues {
		qd := day[queue]
		if qd.Channel == 0 {
			continue
		}

		// Local copy: the midnight merge consumes tomorrow's first interval
		// for the rest of this queue's planning only.
		var tomorrowPeriods []schedule.Interval
		if dayOffset == 0 {
			tomorrowPeriods = append(tomorrowPeriods, tomorrow[queue].Periods...)
		}

		for i, iv := range qd.Periods {
			startAt := clockAt(now, dayOffset, iv.Start)
			endAt := clockAt(now, dayOffset, iv.End)

			// Cross-day continuity: today's last interval ending exactly at
			// midnight joins tomorrow's first interval starting at midnight
			// into one continuous outage. Tried once, for the last interval only.
			if dayOffset == 0 && i == len(qd.Periods)-1 && len(tomorrowPeriods) > 0 &&
				iv.EndsAtMidnight() && tomorrowPeriods[0].Start == 0 {
				endAt = clockAt(now, 1, tomorrowPeriods[0].End)
				p.Log.Info("merged midnight-spanning outage",
					logx.String("queue", queue),
					logx.String("span", iv.Start.String()+" - "+tomorrowPeriods[0].End.String()))
				tomorrowPeriods = tomorrowPeriods[1:]
			}

			if endAt.Before(now) {
				continue
			}

			preAt := startAt.Add(-preWarn)
			if preAt.After(now) {
				events = append(events, Event{
					Queue: queue, Kind: KindPre, Channel: qd.Channel, DayOffset: dayOffset,
					FireAt: preAt,
					Text: fmt.Sprintf("⏳ Через %d хв відключення з %s до %s.",
						int(preWarn.Minutes()), startAt.Format("15:04"), endAt.Format("15:04")),
				})
			}

			offText := fmt.Sprintf("🔴 ВІДКЛЮЧЕННЯ з %s до 💡%s.", startAt.Format("15:04"), endAt.Format("15:04"))
			if p.PostLink != nil {
				if link := p.PostLink(qd.Channel); link != "" {
					offText += fmt.Sprintf("\n\n📅 <b>Графік на сьогодні:</b> %s", link)
				}
			}
			events = append(events, Event{
				Queue: queue, Kind: KindOff, Channel: qd.Channel, DayOffset: dayOffset,
				FireAt: startAt, Text: offText,
			})

			// Next off-start: the rest of this day, else tomorrow's first
			// (annotated as tomorrow's).
			var (
				nextOff      schedule.Clock
				haveNext     bool
				nextTomorrow bool
			)
			if i+1 < len(qd.Periods) {
				nextOff, haveNext = qd.Periods[i+1].Start, true
			} else if len(tomorrowPeriods) > 0 {
				nextOff, haveNext, nextTomorrow = tomorrowPeriods[0].Start, true, true
			}

			// The next-off phrase reuses the restoration hour's preposition.
			// Reads oddly for an 11:00 next-off, but matches what subscribers
			// have always received.
			onText := fmt.Sprintf("⚡ СВІТЛО ВМИКАЮТЬ %s %s.", vocative(endAt.Hour()), endAt.Format("15:04"))
			if haveNext {
				if nextTomorrow {
					onText += fmt.Sprintf("\n🔴 Наступне відключення завтра %s %s", vocative(endAt.Hour()), nextOff)
				} else {
					onText += fmt.Sprintf("\n🔴 Наступне відключення %s %s", vocative(endAt.Hour()), nextOff)
				}
			}
			events = append(events, Event{
				Queue: queue, Kind: KindOn, Channel: qd.Channel, DayOffset: dayOffset,
				FireAt: endAt, Text: onText,
			})
		}
	}
	return events
}

// clockAt anchors a wall-clock value on now's date plus dayOffset, in now's
// location. A Clock beyond 24h spills into the following day; time.Date
// normalizes the overflow with correct DST handling.
func clockAt(now time.Time, dayOffset int, c schedule.Clock) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+dayOffset, c.Hour(), c.Minute(), 0, 0, now.Location())
}

// vocative picks the Ukrainian preposition before a clock time: "об 11:00"
// but "о" for every other hour.
func vocative(hour int) string {
	if hour == 11 {
		return "об"
	}
	return "о"
}
