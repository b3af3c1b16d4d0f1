package htx_websocket

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/config"
	"market_monitor/internal/modules/configstore"
	health "market_monitor/internal/modules/health/service"
	"market_monitor/internal/modules/htx_websocket/service"
	notify "market_monitor/internal/modules/notifier/service"
	"market_monitor/pkg/signer"
)

const (
	tickBuffer      = 1024
	positionsBuffer = 64
	// после стольких неудач подряд уходит сервисное уведомление
	outageThreshold = 3
)

// Sessions обе сессии биржи.
type Sessions struct {
	Private *service.Session
	Market  *service.Session
}

// outageNotifier шлёт одно уведомление на обрыв и одно на восстановление.
type outageNotifier struct {
	d   *notify.Dispatcher
	cs  *configstore.Store
	log *zap.Logger

	mu   sync.Mutex
	down map[string]bool
}

func (o *outageNotifier) observe(st *health.State) service.Observer {
	return func(ev service.StateEvent) {
		st.SetSession(ev.Session, ev.State.String(), ev.Failures, ev.Err)
		if ev.Session == "market" && ev.State == service.StateOpen && ev.Failures == 0 {
			st.SetReady(true)
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		meta := notify.MetaFrom(o.cs.Current().Notification)
		switch {
		case ev.State == service.StateBackoff && ev.Failures >= outageThreshold && !o.down[ev.Session]:
			o.down[ev.Session] = true
			o.log.Error("ws session is down", zap.String("session", ev.Session), zap.Int("failures", ev.Failures), zap.Error(ev.Err))
			body := fmt.Sprintf("%d неудачных подключений подряд", ev.Failures)
			if ev.Err != nil {
				body += ": " + ev.Err.Error()
			}
			o.d.Enqueue(notify.Service("⚠️ "+ev.Session+" ws недоступен", body, meta))
		// Open с ненулевым счётчиком ещё не рабочая сессия: логин может быть отвергнут
		case ev.State == service.StateOpen && ev.Failures == 0 && o.down[ev.Session]:
			delete(o.down, ev.Session)
			o.d.Enqueue(notify.Service("✅ "+ev.Session+" ws восстановлен", "", meta))
		}
	}
}

func NewTickStream() chan models.Tick { return make(chan models.Tick, tickBuffer) }

func NewPositionStream() chan models.PositionsUpdate {
	return make(chan models.PositionsUpdate, positionsBuffer)
}

func NewMarket(out chan models.Tick, log *zap.Logger) *service.Market {
	return service.NewMarket(out, log.Named("market_ws"))
}

func NewSessions(
	cfg *config.Config,
	market *service.Market,
	positions chan models.PositionsUpdate,
	st *health.State,
	d *notify.Dispatcher,
	cs *configstore.Store,
	log *zap.Logger,
) (*Sessions, error) {
	private, err := service.NewPrivate(
		cfg.HTX.WSPrivateURL,
		cfg.HTX.PositionsTopic,
		signer.New(cfg.HTX.AccessKey, cfg.HTX.SecretKey),
		positions,
		log.Named("private_ws"),
	)
	if err != nil {
		return nil, err
	}
	o := &outageNotifier{d: d, cs: cs, log: log, down: make(map[string]bool)}
	obs := o.observe(st)
	return &Sessions{
		Private: service.NewSession(cfg.HTX.WSPrivateURL, private, service.Options{}, log.Named("private_ws"), obs),
		Market:  service.NewSession(cfg.HTX.WSMarketURL, market, service.Options{}, log.Named("market_ws"), obs),
	}, nil
}

// Module поднимает приватный и публичный стримы HTX.
func Module() fx.Option {
	return fx.Module("htx_websocket",
		fx.Provide(
			NewTickStream,
			NewPositionStream,
			NewMarket,
			NewSessions,
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Sessions) {
			ctx, cancel := context.WithCancel(context.Background())
			var wg sync.WaitGroup
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					for _, sess := range []*service.Session{s.Private, s.Market} {
						wg.Add(1)
						go func(sess *service.Session) {
							defer wg.Done()
							sess.Run(ctx)
						}(sess)
					}
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					done := make(chan struct{})
					go func() {
						wg.Wait()
						close(done)
					}()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
