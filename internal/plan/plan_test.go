package plan

import (
	"strings"
	"testing"
	"time"

	"github.com/suprun/ck-blackout-bot/internal/schedule"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

func kyiv(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func mustInterval(t *testing.T, start, end string) schedule.Interval {
	t.Helper()
	s, err := schedule.ParseClock(start)
	if err != nil {
		t.Fatal(err)
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		t.Fatal(err)
	}
	iv, err := schedule.NewInterval(s, e)
	if err != nil {
		t.Fatal(err)
	}
	return iv
}

func testPlanner() *Planner {
	return &Planner{PreWarn: 5 * time.Minute, Log: logx.Nop()}
}

func TestPlanFullDay(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 13, 0, 0, 0, loc)
	day := schedule.Day{
		"3.1": {Channel: -100123, Periods: []schedule.Interval{
			mustInterval(t, "14:00", "15:00"),
			mustInterval(t, "21:00", "23:00"),
		}},
	}

	events := testPlanner().Plan(day, 0, now, nil)
	if len(events) != 6 {
		t.Fatalf("events = %d, want 6: %+v", len(events), events)
	}

	pre := events[0]
	if pre.Kind != KindPre || !pre.FireAt.Equal(time.Date(2026, time.January, 15, 13, 55, 0, 0, loc)) {
		t.Fatalf("first event = %+v, want pre at 13:55", pre)
	}
	if pre.Text != "⏳ Через 5 хв відключення з 14:00 до 15:00." {
		t.Fatalf("pre text = %q", pre.Text)
	}

	off := events[1]
	if off.Kind != KindOff || off.Text != "🔴 ВІДКЛЮЧЕННЯ з 14:00 до 💡15:00." {
		t.Fatalf("off = %+v", off)
	}

	on := events[2]
	if on.Kind != KindOn {
		t.Fatalf("third event = %+v, want on", on)
	}
	if on.Text != "⚡ СВІТЛО ВМИКАЮТЬ о 15:00.\n🔴 Наступне відключення о 21:00" {
		t.Fatalf("on text = %q", on.Text)
	}

	lastOn := events[5]
	if lastOn.Kind != KindOn || strings.Contains(lastOn.Text, "Наступне") {
		t.Fatalf("last on should have no next-outage line: %q", lastOn.Text)
	}
}

func TestPlanDeterministic(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 13, 0, 0, 0, loc)
	day := schedule.Day{
		"1.1": {Channel: -1, Periods: []schedule.Interval{mustInterval(t, "14:00", "15:00")}},
		"2.1": {Channel: -2, Periods: []schedule.Interval{mustInterval(t, "16:00", "17:00")}},
	}

	a := testPlanner().Plan(day, 0, now, nil)
	b := testPlanner().Plan(day, 0, now, nil)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key() != b[i].Key() || a[i].Text != b[i].Text {
			t.Fatalf("plan not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPlanSkipsUnboundAndStale(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 13, 0, 0, 0, loc)
	day := schedule.Day{
		"1.1": {Channel: 0, Periods: []schedule.Interval{mustInterval(t, "14:00", "15:00")}},
		"2.1": {Channel: -2, Periods: []schedule.Interval{
			mustInterval(t, "08:00", "10:00"), // fully past
			mustInterval(t, "12:00", "16:00"), // running
		}},
	}

	events := testPlanner().Plan(day, 0, now, nil)
	for _, ev := range events {
		if ev.Queue == "1.1" {
			t.Fatalf("unbound queue planned: %+v", ev)
		}
	}
	// The running interval keeps off (fires immediately) and on, no pre.
	if len(events) != 2 {
		t.Fatalf("events = %+v, want off+on of the running interval", events)
	}
	if events[0].Kind != KindOff || !events[0].FireAt.Before(now) {
		t.Fatalf("first = %+v, want past off-start", events[0])
	}
	if events[1].Kind != KindOn {
		t.Fatalf("second = %+v, want on", events[1])
	}
}

func TestPlanMidnightMerge(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 20, 0, 0, 0, loc)
	today := schedule.Day{
		"3.1": {Channel: -5, Periods: []schedule.Interval{mustInterval(t, "21:00", "00:00")}},
	}
	tomorrow := schedule.Day{
		"3.1": {Channel: -5, Periods: []schedule.Interval{
			mustInterval(t, "00:00", "02:00"),
			mustInterval(t, "09:00", "11:00"),
		}},
	}

	events := testPlanner().Plan(today, 0, now, tomorrow)
	if len(events) != 3 {
		t.Fatalf("events = %d, want pre+off+on: %+v", len(events), events)
	}

	on := events[2]
	wantOn := time.Date(2026, time.January, 16, 2, 0, 0, 0, loc)
	if !on.FireAt.Equal(wantOn) {
		t.Fatalf("merged on fires at %v, want %v", on.FireAt, wantOn)
	}
	if !strings.Contains(events[1].Text, "з 21:00 до 💡02:00") {
		t.Fatalf("off text = %q, want merged span", events[1].Text)
	}
	// Tomorrow's first interval was consumed by the merge; the next outage is
	// tomorrow's second.
	if !strings.Contains(on.Text, "Наступне відключення завтра о 09:00") {
		t.Fatalf("on text = %q", on.Text)
	}
}

func TestPlanNoMergeWhenGap(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 20, 0, 0, 0, loc)
	today := schedule.Day{
		"3.1": {Channel: -5, Periods: []schedule.Interval{mustInterval(t, "21:00", "23:00")}},
	}
	tomorrow := schedule.Day{
		"3.1": {Channel: -5, Periods: []schedule.Interval{mustInterval(t, "00:00", "02:00")}},
	}

	events := testPlanner().Plan(today, 0, now, tomorrow)
	on := events[len(events)-1]
	wantOn := time.Date(2026, time.January, 15, 23, 0, 0, 0, loc)
	if !on.FireAt.Equal(wantOn) {
		t.Fatalf("on fires at %v, want %v (no merge across a gap)", on.FireAt, wantOn)
	}
	if !strings.Contains(on.Text, "завтра о 00:00") {
		t.Fatalf("on text = %q, want tomorrow's first as next", on.Text)
	}
}

func TestPlanVocativeElevenOClock(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 8, 0, 0, 0, loc)
	day := schedule.Day{
		"1.1": {Channel: -1, Periods: []schedule.Interval{mustInterval(t, "09:00", "11:00")}},
	}

	events := testPlanner().Plan(day, 0, now, nil)
	on := events[len(events)-1]
	if !strings.HasPrefix(on.Text, "⚡ СВІТЛО ВМИКАЮТЬ об 11:00.") {
		t.Fatalf("on text = %q, want vocative об before 11:00", on.Text)
	}
}

func TestPlanPostLinkAppended(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 13, 0, 0, 0, loc)
	p := testPlanner()
	p.PostLink = func(channel int64) string {
		if channel == -1 {
			return "https://t.me/c/1/2"
		}
		return ""
	}
	day := schedule.Day{
		"1.1": {Channel: -1, Periods: []schedule.Interval{mustInterval(t, "14:00", "15:00")}},
	}

	events := p.Plan(day, 0, now, nil)
	off := events[1]
	if !strings.Contains(off.Text, "📅 <b>Графік на сьогодні:</b> https://t.me/c/1/2") {
		t.Fatalf("off text = %q, want post link", off.Text)
	}
	if strings.Contains(events[0].Text, "t.me") || strings.Contains(events[2].Text, "t.me") {
		t.Fatal("post link belongs on the off message only")
	}
}

func TestEventKeyStableAcrossReplans(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	day := schedule.Day{
		"3.1": {Channel: -5, Periods: []schedule.Interval{mustInterval(t, "14:00", "15:00")}},
	}

	early := time.Date(2026, time.January, 15, 9, 0, 0, 0, loc)
	late := time.Date(2026, time.January, 15, 13, 30, 0, 0, loc)
	a := testPlanner().Plan(day, 0, early, nil)
	b := testPlanner().Plan(day, 0, late, nil)

	keys := map[string]bool{}
	for _, ev := range a {
		keys[ev.Key()] = true
	}
	for _, ev := range b {
		if !keys[ev.Key()] {
			t.Fatalf("key %q not stable across replans", ev.Key())
		}
	}
}

func TestPlanTomorrowOffset(t *testing.T) {
	t.Parallel()
	loc := kyiv(t)
	now := time.Date(2026, time.January, 15, 13, 0, 0, 0, loc)
	day := schedule.Day{
		"1.1": {Channel: -1, Periods: []schedule.Interval{mustInterval(t, "09:00", "11:00")}},
	}

	events := testPlanner().Plan(day, 1, now, nil)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	wantOff := time.Date(2026, time.January, 16, 9, 0, 0, 0, loc)
	if !events[1].FireAt.Equal(wantOff) {
		t.Fatalf("off fires at %v, want %v", events[1].FireAt, wantOff)
	}
	if events[1].DayOffset != 1 {
		t.Fatalf("DayOffset = %d, want 1", events[1].DayOffset)
	}
}
