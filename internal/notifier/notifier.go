// Package notifier is the send side of the bot: one rate-limited, in-flight
// message at a time through the transport adapter. Failures are logged and
// terminal — outage notifications are time-sensitive and a stale retry is
// worse than a drop.
package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "github.com/suprun/ck-blackout-bot/internal/transport"
	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

type Config struct {
	RatePerSec int
}

type HistoryItem struct {
	At      time.Time
	Channel int64
	Text    string
	Error   string
}

const historyMax = 300

type Service struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger

	mu      sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	return &Service{
		adapter: adapter,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Send posts one HTML message to a channel. The error is returned for the
// caller's log context but the outcome is terminal either way: no retry.
func (s *Service) Send(ctx context.Context, channel int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.adapter.SendText(callCtx, kit.ChatTarget{ChatID: channel}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})

	item := HistoryItem{At: time.Now(), Channel: channel, Text: text}
	if err != nil {
		item.Error = err.Error()
		s.log.Error("send failed", logx.Int64("channel", channel), logx.Err(err))
	} else {
		s.log.Info("message sent", logx.Int64("channel", channel))
	}
	s.appendHistory(item)
	return err
}

func (s *Service) appendHistory(item HistoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, item)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
}

// History returns a copy of recent send outcomes, newest last.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
