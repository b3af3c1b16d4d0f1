package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market_monitor"

// TicksReceived тики публичного стрима по символу.
var TicksReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "market",
		Name:      "ticks_total",
		Help:      "Market ticks received",
	},
	[]string{"symbol"},
)

// PositionPushes push-и приватного стрима.
var PositionPushes = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "positions",
		Name:      "pushes_total",
		Help:      "Position pushes received from the authenticated stream",
	},
)

// Reconnects переподключения сессий: session=private|market.
var Reconnects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "reconnects_total",
		Help:      "WebSocket reconnect attempts",
	},
	[]string{"session"},
)

// SessionOpen 1 пока сессия в состоянии open.
var SessionOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "session_open",
		Help:      "1 while the session is open",
	},
	[]string{"session"},
)

// Notifications доставки по каналам: result=ok|failed|deduped.
var Notifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Notification deliveries by channel and result",
	},
	[]string{"channel", "result"},
)

// NotificationsDropped очередь диспетчера переполнена.
var NotificationsDropped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "dropped_total",
		Help:      "Notifications dropped because the dispatch queue was full",
	},
)

// Alerts срабатывания движка: kind=price|target|pnl.
var Alerts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "fired_total",
		Help:      "Alerts fired by kind",
	},
	[]string{"kind"},
)

// Trades закрытые сделки кванта.
var Trades = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quant",
		Name:      "trades_total",
		Help:      "Quant orders by mode, side and reason",
	},
	[]string{"mode", "side", "reason"},
)

// VenueRequestLatency латентность REST биржи, секунды.
var VenueRequestLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "venue",
		Name:      "request_seconds",
		Help:      "Venue REST latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	},
	[]string{"path", "status"},
)
