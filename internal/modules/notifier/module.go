package notifier

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/configstore"
	"market_monitor/internal/modules/notifier/service"
)

// Channels собранные каналы с дедупликацией; недоступные отброшены.
type Channels struct {
	List  []service.Channel
	dedup []*service.Dedup
}

func NewChannels(cfg *config.Config, log *zap.Logger) *Channels {
	log = log.Named("notifier")
	out := &Channels{}

	add := func(c service.Channel) {
		d := service.NewDedup(c, cfg.NotifyDedupWindow, time.Now)
		out.List = append(out.List, d)
		out.dedup = append(out.dedup, d)
		log.Info("notification channel enabled", zap.String("channel", c.Name()))
	}

	if cfg.Bark.Server != "" || cfg.Bark.Key != "" {
		if b, err := service.NewBark(cfg.Bark.Server, cfg.Bark.Key); err != nil {
			log.Warn("bark channel dropped", zap.Error(err))
		} else {
			add(b)
		}
	}
	if cfg.Telegram.Token != "" {
		if t, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.APIBase); err != nil {
			log.Warn("telegram channel dropped", zap.Error(err))
		} else {
			add(t)
		}
	}
	if len(out.List) == 0 {
		log.Warn("no notification channels available, alerts will only be logged")
	}
	return out
}

// SetDedupWindow применяет notification.dedupWindowMs из документа.
func (c *Channels) SetDedupWindow(w time.Duration) {
	for _, d := range c.dedup {
		d.SetWindow(w)
	}
}

func NewMux(ch *Channels, log *zap.Logger) *service.Mux {
	return service.NewMux(log.Named("notifier"), ch.List...)
}

func NewDispatcher(mux *service.Mux, log *zap.Logger) *service.Dispatcher {
	return service.NewDispatcher(mux, service.DefaultQueueSize, log.Named("dispatcher"))
}

func Module() fx.Option {
	return fx.Module("notifier",
		fx.Provide(
			NewChannels,
			NewMux,
			func(m *service.Mux) service.Sender { return m },
			NewDispatcher,
		),
		fx.Invoke(func(lc fx.Lifecycle, d *service.Dispatcher, ch *Channels, cs *configstore.Store) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go d.Run(ctx)

					updates, unsubscribe := cs.Subscribe()
					apply := func(ms int64) {
						if ms > 0 {
							ch.SetDedupWindow(time.Duration(ms) * time.Millisecond)
						}
					}
					apply(cs.Current().Notification.DedupWindowMs)
					go func() {
						defer unsubscribe()
						for {
							select {
							case <-ctx.Done():
								return
							case doc := <-updates:
								apply(doc.Notification.DedupWindowMs)
							}
						}
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
