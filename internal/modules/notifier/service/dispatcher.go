package service

import (
	"context"

	"go.uber.org/zap"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
)

const DefaultQueueSize = 256

// Dispatcher отвязывает горячий путь тиков от HTTP каналов:
// Enqueue не блокируется, при полной очереди новое уведомление отбрасывается.
type Dispatcher struct {
	sender Sender
	queue  chan models.Notification
	log    *zap.Logger
}

func NewDispatcher(sender Sender, size int, log *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{sender: sender, queue: make(chan models.Notification, size), log: log}
}

func (d *Dispatcher) Enqueue(n models.Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		d.log.Warn("notification queue full, dropped", zap.String("title", n.Title))
		return false
	}
}

// Run шлёт по одному до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			if err := d.sender.Notify(ctx, n); err != nil {
				d.log.Warn("notification not delivered", zap.String("title", n.Title), zap.Error(err))
			}
		}
	}
}
