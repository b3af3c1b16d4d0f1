package service

import (
	"context"

	"go.uber.org/zap"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
	"market_monitor/pkg/tracing"
)

// Mux упорядоченный список каналов; успех, если доставил хоть один.
type Mux struct {
	channels []Channel
	log      *zap.Logger
}

func NewMux(log *zap.Logger, channels ...Channel) *Mux {
	return &Mux{channels: channels, log: log}
}

func (m *Mux) Channels() []string {
	out := make([]string, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c.Name())
	}
	return out
}

func (m *Mux) Notify(ctx context.Context, n models.Notification) error {
	if len(m.channels) == 0 {
		return ErrNoChannels
	}
	span, ctx := tracing.StartSpan(ctx, "notifier", "notify")
	span.SetTag("title", n.Title)

	delivered := 0
	for _, c := range m.channels {
		dctx, cancel := context.WithTimeout(ctx, DeliverTimeout)
		err := c.Deliver(dctx, n.Title, n.Body, n.Meta)
		cancel()
		if err != nil {
			metrics.Notifications.WithLabelValues(c.Name(), "failed").Inc()
			m.log.Error("notification delivery failed",
				zap.String("channel", c.Name()),
				zap.String("title", n.Title),
				zap.Error(err),
			)
			continue
		}
		metrics.Notifications.WithLabelValues(c.Name(), "ok").Inc()
		delivered++
	}

	var err error
	if delivered == 0 {
		err = ErrAllChannelsFailed
	}
	tracing.Finish(span, err)
	return err
}
