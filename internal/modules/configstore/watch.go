package configstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/modules/kvstore"
)

// Watch держит кэш свежим: pub/sub config:update плюс опрос не реже pollInterval.
// Возвращается, когда ctx отменён.
func (s *Store) Watch(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 || pollInterval > DefaultPollInterval {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var (
		msgs   <-chan []byte
		cancel func()
	)
	subscribe := func() {
		ch, c, err := s.kv.Subscribe(ctx, kvstore.ChannelConfigUpdate)
		if err != nil {
			s.log.Warn("config subscribe failed, polling only", zap.Error(err))
			return
		}
		msgs, cancel = ch, c
	}
	subscribe()
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	reload := func(src string) {
		changed, err := s.Reload(ctx)
		if err != nil {
			s.log.Warn("config reload failed, keeping last known", zap.String("src", src), zap.Error(err))
			return
		}
		if changed {
			s.log.Info("config changed", zap.String("src", src), zap.Int64("version", s.Current().Version))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				// подписка оборвалась, переподпишемся на следующем тике
				msgs, cancel = nil, nil
				continue
			}
			reload("pubsub")
		case <-ticker.C:
			if msgs == nil {
				subscribe()
			}
			reload("poll")
		}
	}
}
