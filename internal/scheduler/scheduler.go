// Package scheduler owns the event lifecycle: a minute tick that watches the
// schedule files, a one-goroutine-per-event timer pool, and the fire path
// that consults the dedup ledger and the mute list before dispatching.
package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/suprun/ck-blackout-bot/internal/ledger"
	"github.com/suprun/ck-blackout-bot/internal/plan"
	"github.com/suprun/ck-blackout-bot/internal/schedule"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

// Sender delivers one rendered notification to a channel.
type Sender interface {
	Send(ctx context.Context, channel int64, text string) error
}

// MutePolicy suppresses delivery per channel without touching the ledger.
type MutePolicy interface {
	Muted(channel int64) bool
}

// InboxFunc runs once per tick before the schedule files are re-read.
type InboxFunc func(now time.Time)

type Service struct {
	log     logx.Logger
	store   *schedule.Store
	planner *plan.Planner
	ledger  ledger.Ledger
	mute    MutePolicy
	send    Sender
	inbox   InboxFunc
	loc     *time.Location

	cron *cron.Cron

	mu         sync.Mutex
	runCtx     context.Context
	taskCancel context.CancelFunc
	taskWG     sync.WaitGroup
	rolloverAt time.Time
	started    bool
}

func New(store *schedule.Store, planner *plan.Planner, led ledger.Ledger, mute MutePolicy, send Sender, inbox InboxFunc, loc *time.Location, log logx.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		log:     log,
		store:   store,
		planner: planner,
		ledger:  led,
		mute:    mute,
		send:    send,
		inbox:   inbox,
		loc:     loc,
	}
}

// Start loads the schedule, plans the initial event set and begins the
// minute tick. ctx is the parent of every event timer; cancelling it stops
// pending events but Stop should still be called to drain them.
func (s *Service) Start(ctx context.Context) error {
	now := time.Now().In(s.loc)

	s.mu.Lock()
	s.runCtx = ctx
	s.started = true
	s.store.Load()
	s.replanLocked(now)
	s.rolloverAt = nextMidnight(now)
	s.mu.Unlock()

	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc("@every 1m", s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
	return nil
}

// Stop halts the tick, cancels pending event timers and waits for in-flight
// dispatches, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.mu.Lock()
	s.started = false
	cancel := s.taskCancel
	s.taskCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.taskWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with tasks in flight")
	}
}

// Replan rebuilds the event set from the current store contents. Used by the
// config reload path; the tick calls the same internals on file changes.
func (s *Service) Replan() {
	now := time.Now().In(s.loc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.replanLocked(now)
}

// SetPreWarn updates the warning lead time; the next replan picks it up.
func (s *Service) SetPreWarn(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planner.PreWarn = d
}

func (s *Service) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panicked",
				logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	now := time.Now().In(s.loc)
	if s.inbox != nil {
		s.inbox(now)
	}
	changed := s.store.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if changed {
		s.log.Info("schedule change detected; replanning")
		s.replanLocked(now)
		s.rolloverAt = nextMidnight(now)
		return
	}
	if !now.Before(s.rolloverAt) {
		s.log.Info("midnight rollover")
		s.store.Rollover()
		s.store.Load()
		s.replanLocked(now)
		s.rolloverAt = nextMidnight(now)
	}
}

// replanLocked cancels the previous event set and registers a fresh one.
// The wait must complete before new timers start: two live timers for the
// same event would race the ledger.
func (s *Service) replanLocked(now time.Time) {
	if s.taskCancel != nil {
		s.taskCancel()
		s.taskWG.Wait()
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.taskCancel = cancel

	today := s.store.Today()
	tomorrow := s.store.Tomorrow()
	events := s.planner.Plan(today, 0, now, tomorrow)
	if len(tomorrow) > 0 {
		events = append(events, s.planner.Plan(tomorrow, 1, now, nil)...)
	}
	for _, ev := range events {
		ev := ev
		s.taskWG.Add(1)
		go func() {
			defer s.taskWG.Done()
			s.waitAndFire(ctx, ev)
		}()
	}
	s.log.Info("events planned", logx.Int("count", len(events)))
}

func (s *Service) waitAndFire(ctx context.Context, ev plan.Event) {
	if delay := time.Until(ev.FireAt); delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
	}
	if ctx.Err() != nil {
		return
	}
	s.fire(ctx, ev)
}

func (s *Service) fire(ctx context.Context, ev plan.Event) {
	key := ev.Key()
	if s.ledger.Seen(key) {
		s.log.Debug("duplicate event suppressed", logx.String("key", key))
		return
	}
	if s.mute != nil && s.mute.Muted(ev.Channel) {
		// Muted events are not recorded: unmuting before a replan lets the
		// still-future ones through.
		s.log.Info("channel muted; event suppressed",
			logx.String("key", key), logx.Int64("channel", ev.Channel))
		return
	}
	if err := s.send.Send(ctx, ev.Channel, ev.Text); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		// No retry. The key is recorded anyway so a replan does not turn a
		// transient failure into a duplicate.
		s.log.Error("dispatch failed; not retrying",
			logx.String("key", key), logx.Int64("channel", ev.Channel), logx.Err(err))
	}
	if err := s.ledger.Record(key); err != nil {
		s.log.Error("ledger record failed", logx.String("key", key), logx.Err(err))
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
