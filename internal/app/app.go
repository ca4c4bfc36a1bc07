// Package app wires the bot together: config, logging, transport, schedule
// store, planner, dedup ledger and the event scheduler.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/suprun/ck-blackout-bot/internal/config"
	"github.com/suprun/ck-blackout-bot/internal/ingest"
	"github.com/suprun/ck-blackout-bot/internal/ledger"
	"github.com/suprun/ck-blackout-bot/internal/mute"
	"github.com/suprun/ck-blackout-bot/internal/notifier"
	"github.com/suprun/ck-blackout-bot/internal/plan"
	"github.com/suprun/ck-blackout-bot/internal/schedule"
	"github.com/suprun/ck-blackout-bot/internal/scheduler"
	telegram "github.com/suprun/ck-blackout-bot/internal/transport/telegram"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	adapter *telegram.Adapter
	store   *schedule.Store
	led     ledger.Ledger
	mutes   *mute.List
	notif   *notifier.Service
	sched   *scheduler.Service

	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	store := schedule.NewStore(schedule.StorePaths{
		Today:             cfg.Schedule.TodayFile,
		Tomorrow:          cfg.Schedule.TomorrowFile,
		PostLinksToday:    cfg.Schedule.PostLinksToday,
		PostLinksTomorrow: cfg.Schedule.PostLinksTomorrow,
	}, logSvc.Logger().With(logx.String("comp", "schedule")))

	retention, err := config.ParseDurationOrDefault("ledger.retention", cfg.Ledger.Retention, 240*time.Hour)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(ledger.Config{
		Driver:     cfg.Ledger.Driver,
		Path:       cfg.Ledger.Path,
		MaxEntries: cfg.Ledger.MaxEntries,
		Retention:  retention,
	}, logSvc.Logger().With(logx.String("comp", "ledger")))
	if err != nil {
		return nil, err
	}

	mutes := mute.New(cfg.Schedule.MuteFile, logSvc.Logger().With(logx.String("comp", "mute")))
	notif := notifier.New(notifier.Config{RatePerSec: cfg.Notifier.RatePerSec}, ad,
		logSvc.Logger().With(logx.String("comp", "notifier")))

	preWarn, err := config.ParseDurationOrDefault("planner.pre_warn", cfg.Planner.PreWarn, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	planner := &plan.Planner{
		PreWarn:  preWarn,
		PostLink: store.PostLink,
		Log:      logSvc.Logger().With(logx.String("comp", "plan")),
	}

	var inbox scheduler.InboxFunc
	if dir := cfg.Schedule.InboxDir; dir != "" {
		conv := ingest.New(ingest.Config{
			TodayFile:    cfg.Schedule.TodayFile,
			TomorrowFile: cfg.Schedule.TomorrowFile,
			Channels:     cfg.Channels,
		}, logSvc.Logger().With(logx.String("comp", "ingest")))
		inbox = func(now time.Time) { conv.ScanInbox(dir, now) }
	}

	sched := scheduler.New(store, planner, led, mutes, notif, inbox, loc,
		logSvc.Logger().With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		adapter: ad,
		store:   store,
		led:     led,
		mutes:   mutes,
		notif:   notif,
		sched:   sched,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.cfgm.OnChange(a.applyConfig)
	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cfgm.Watch(wctx)
	}()

	if err := a.sched.Start(ctx); err != nil {
		cancel()
		return err
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}
	a.log.Info("started")
	return nil
}

// applyConfig handles hot-reloadable settings. Transport, file paths and
// channel bindings are fixed at construction; changing those needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if d, err := config.ParseDurationOrDefault("planner.pre_warn", cfg.Planner.PreWarn, 5*time.Minute); err == nil {
		a.sched.SetPreWarn(d)
	} else {
		a.log.Warn("config reload: bad pre_warn; keeping previous", logx.Err(err))
	}
	// Reload goes through the same cancel-then-replan path as a schedule
	// change, so a knob change can never double-fire an event.
	a.sched.Replan()
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.sched.Stop(ctx)
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.wg.Wait()
	if err := a.led.Close(); err != nil {
		a.log.Warn("ledger close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}
