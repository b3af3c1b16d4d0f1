package service

import (
	"context"
	"errors"
	"time"

	"market_monitor/internal/models"
)

// DeliverTimeout потолок одной доставки, ретраев нет: частотой управляет политика.
const DeliverTimeout = 5 * time.Second

var (
	ErrNoChannels         = errors.New("notifier: no channels configured")
	ErrAllChannelsFailed  = errors.New("notifier: all channels failed")
	errUnexpectedResponse = errors.New("notifier: unexpected response")
)

// Channel драйвер одного канала доставки.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, title, body string, meta models.NotifyMeta) error
}

// Sender то, чем пользуются движок алертов и квант.
type Sender interface {
	Notify(ctx context.Context, n models.Notification) error
}
