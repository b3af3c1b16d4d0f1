package service

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
)

// Dedup глушит одинаковые (title, body) на одном канале внутри окна.
// Пропуск считается успешной доставкой.
type Dedup struct {
	inner  Channel
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[[32]byte]time.Time
}

func NewDedup(inner Channel, window time.Duration, now func() time.Time) *Dedup {
	if now == nil {
		now = time.Now
	}
	return &Dedup{inner: inner, window: window, now: now, seen: make(map[[32]byte]time.Time)}
}

func (d *Dedup) Name() string { return d.inner.Name() }

// SetWindow окно меняется горячей перезагрузкой конфига.
func (d *Dedup) SetWindow(w time.Duration) {
	d.mu.Lock()
	d.window = w
	d.mu.Unlock()
}

func (d *Dedup) Deliver(ctx context.Context, title, body string, meta models.NotifyMeta) error {
	key := sha256.Sum256([]byte(title + "\x00" + body))
	now := d.now()

	d.mu.Lock()
	if d.window > 0 {
		if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
			d.mu.Unlock()
			metrics.Notifications.WithLabelValues(d.Name(), "deduped").Inc()
			return nil
		}
	}
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.window {
			delete(d.seen, k)
		}
	}
	d.mu.Unlock()

	if err := d.inner.Deliver(ctx, title, body, meta); err != nil {
		return err
	}

	d.mu.Lock()
	d.seen[key] = now
	d.mu.Unlock()
	return nil
}
