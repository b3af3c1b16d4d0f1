package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"market_monitor/internal/helper"
	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
)

type marketEnvelope struct {
	Ch   string `json:"ch"`
	Ts   int64  `json:"ts"`
	Tick *struct {
		Close *float64 `json:"close"`
		Last  *float64 `json:"last"`
	} `json:"tick"`
	ID       string `json:"id"`
	Status   string `json:"status"`
	Subbed   string `json:"subbed"`
	Unsubbed string `json:"unsubbed"`
	ErrCode  string `json:"err-code"`
	ErrMsg   string `json:"err-msg"`
}

func detailTopic(symbol string) string { return "market." + symbol + ".detail" }

func symbolFromTopic(ch string) (string, bool) {
	if !strings.HasPrefix(ch, "market.") || !strings.HasSuffix(ch, ".detail") {
		return "", false
	}
	sym := strings.TrimSuffix(strings.TrimPrefix(ch, "market."), ".detail")
	return sym, sym != ""
}

// Market публичный стрим тиков с динамическим набором подписок.
type Market struct {
	out chan<- models.Tick
	log *zap.Logger
	now func() time.Time

	mu         sync.Mutex
	conn       *Conn
	desired    map[string]struct{}
	subscribed map[string]struct{}
}

func NewMarket(out chan<- models.Tick, log *zap.Logger) *Market {
	return &Market{
		out:        out,
		log:        log,
		now:        time.Now,
		desired:    make(map[string]struct{}),
		subscribed: make(map[string]struct{}),
	}
}

func (m *Market) Name() string { return "market" }

// OnOpen подписывает текущий desired, а не набор до разрыва.
func (m *Market) OnOpen(_ context.Context, c *Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = c
	m.subscribed = make(map[string]struct{}, len(m.desired))
	for _, sym := range sortedKeys(m.desired) {
		if err := m.send(c, "sub", sym); err != nil {
			return err
		}
		m.subscribed[sym] = struct{}{}
	}
	return nil
}

func (m *Market) OnClose() {
	m.mu.Lock()
	m.conn = nil
	m.subscribed = make(map[string]struct{})
	m.mu.Unlock()
}

// UpdateSubscriptions шлёт только разницу; без соединения запоминает desired до OnOpen.
func (m *Market) UpdateSubscriptions(desired []string) (added, removed []string) {
	next := make(map[string]struct{}, len(desired))
	for _, s := range helper.UniqueSorted(desired) {
		next[s] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.desired = next
	if m.conn == nil {
		return nil, nil
	}
	for _, sym := range sortedKeys(next) {
		if _, ok := m.subscribed[sym]; ok {
			continue
		}
		if err := m.send(m.conn, "sub", sym); err != nil {
			m.log.Warn("market sub failed, will restore on reconnect", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		m.subscribed[sym] = struct{}{}
		added = append(added, sym)
	}
	for _, sym := range sortedKeys(m.subscribed) {
		if _, ok := next[sym]; ok {
			continue
		}
		if err := m.send(m.conn, "unsub", sym); err != nil {
			m.log.Warn("market unsub failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		delete(m.subscribed, sym)
		removed = append(removed, sym)
	}
	if len(added) > 0 || len(removed) > 0 {
		m.log.Info("market subscriptions updated", zap.Strings("added", added), zap.Strings("removed", removed))
	}
	return added, removed
}

// Subscribed текущий набор на сокете.
func (m *Market) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.subscribed)
}

func (m *Market) send(c *Conn, op, sym string) error {
	return c.WriteJSON(map[string]string{op: detailTopic(sym), "id": uuid.NewString()})
}

func (m *Market) OnMessage(ctx context.Context, _ *Conn, msg []byte) error {
	var env marketEnvelope
	if err := sonic.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("market: decode: %w", err)
	}

	if env.Ch != "" && env.Tick != nil {
		sym, ok := symbolFromTopic(env.Ch)
		if !ok {
			return nil
		}
		var price float64
		switch {
		case env.Tick.Close != nil && *env.Tick.Close > 0:
			price = *env.Tick.Close
		case env.Tick.Last != nil && *env.Tick.Last > 0:
			price = *env.Tick.Last
		default:
			return nil
		}
		metrics.TicksReceived.WithLabelValues(sym).Inc()
		select {
		case m.out <- models.Tick{Symbol: sym, Price: price, ReceivedAt: m.now()}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch {
	case env.Status == "error":
		// кривой символ не повод рвать сессию
		m.log.Error("market request rejected", zap.String("id", env.ID), zap.String("code", env.ErrCode), zap.String("msg", env.ErrMsg))
	case env.Subbed != "":
		m.log.Debug("market subscribed", zap.String("topic", env.Subbed))
	case env.Unsubbed != "":
		m.log.Debug("market unsubscribed", zap.String("topic", env.Unsubbed))
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
